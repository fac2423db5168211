// Package idxmigrate embeds the search index migration pipeline in another
// Go program.
//
// A Client copies every index of a source search service into a target
// service: schema and synonym map first, then documents through a durable
// stage (local directory, Valkey or an S3-compatible bucket), then a count
// reconciliation per index.
//
//	client, _ := idxmigrate.New(ctx,
//	    idxmigrate.WithSource(idxmigrate.Service{Name: "prod-search", APIKey: srcKey}),
//	    idxmigrate.WithTarget(idxmigrate.Service{Name: "dr-search", APIKey: dstKey}),
//	    idxmigrate.WithFSStage("/var/lib/idxmigrate"),
//	)
//	defer client.Close()
//
//	sum, err := client.Run(ctx)
//	if sum.Outcome != idxmigrate.OutcomeSucceeded {
//	    // inspect sum.Indexes[i].Errors
//	}
package idxmigrate
