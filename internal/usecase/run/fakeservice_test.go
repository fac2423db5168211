package run

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
)

// fakeSearch is an in-memory stand-in for the search service REST API.
type fakeSearch struct {
	mu       sync.Mutex
	indexes  map[string]json.RawMessage   // name -> schema
	docs     map[string][]json.RawMessage // name -> documents
	synonyms map[string]json.RawMessage

	uploads     int
	failUploads map[int]int // upload call number -> HTTP status
}

func newFakeSearch() *fakeSearch {
	return &fakeSearch{
		indexes:     map[string]json.RawMessage{},
		docs:        map[string][]json.RawMessage{},
		synonyms:    map[string]json.RawMessage{},
		failUploads: map[int]int{},
	}
}

func (f *fakeSearch) addIndex(name string, docs []json.RawMessage) {
	f.indexes[name] = json.RawMessage(fmt.Sprintf(
		`{"@odata.etag":"\"0x1\"","name":%q,"fields":[{"name":"id","type":"Edm.String","key":true},{"name":"loc","type":"Edm.GeographyPoint"}]}`, name))
	f.docs[name] = docs
}

func (f *fakeSearch) serve(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(f.handle))
	t.Cleanup(srv.Close)
	return srv
}

func (f *fakeSearch) handle(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if r.Header.Get("api-key") == "" {
		w.WriteHeader(http.StatusForbidden)
		return
	}
	parts := strings.Split(strings.Trim(r.URL.Path, "/"), "/")
	body, _ := io.ReadAll(r.Body)

	switch {
	case len(parts) == 1 && parts[0] == "indexes" && r.Method == http.MethodGet:
		names := make([]string, 0, len(f.indexes))
		for n := range f.indexes {
			names = append(names, fmt.Sprintf(`{"name":%q}`, n))
		}
		fmt.Fprintf(w, `{"value":[%s]}`, strings.Join(names, ","))

	case len(parts) == 2 && parts[0] == "indexes":
		f.handleIndex(w, r.Method, parts[1], body)

	case len(parts) == 2 && parts[0] == "synonymmaps":
		f.handleSynonyms(w, r.Method, parts[1], body)

	case len(parts) == 4 && parts[0] == "indexes" && parts[3] == "search":
		f.handleSearch(w, parts[1], body)

	case len(parts) == 4 && parts[0] == "indexes" && parts[3] == "index":
		f.handleUpload(w, parts[1], body)

	default:
		w.WriteHeader(http.StatusBadRequest)
	}
}

func notFound(w http.ResponseWriter, what string) {
	w.WriteHeader(http.StatusNotFound)
	fmt.Fprintf(w, `{"error":{"code":"","message":"%s not found"}}`, what)
}

func (f *fakeSearch) handleIndex(w http.ResponseWriter, method, name string, body []byte) {
	switch method {
	case http.MethodGet:
		s, ok := f.indexes[name]
		if !ok {
			notFound(w, name)
			return
		}
		_, _ = w.Write(s)
	case http.MethodPut:
		f.indexes[name] = body
		f.docs[name] = nil
		w.WriteHeader(http.StatusCreated)
	case http.MethodDelete:
		if _, ok := f.indexes[name]; !ok {
			notFound(w, name)
			return
		}
		delete(f.indexes, name)
		delete(f.docs, name)
		w.WriteHeader(http.StatusNoContent)
	}
}

func (f *fakeSearch) handleSynonyms(w http.ResponseWriter, method, name string, body []byte) {
	switch method {
	case http.MethodGet:
		s, ok := f.synonyms[name]
		if !ok {
			notFound(w, name)
			return
		}
		_, _ = w.Write(s)
	case http.MethodPut:
		f.synonyms[name] = body
		w.WriteHeader(http.StatusCreated)
	case http.MethodDelete:
		if _, ok := f.synonyms[name]; !ok {
			notFound(w, name)
			return
		}
		delete(f.synonyms, name)
		w.WriteHeader(http.StatusNoContent)
	}
}

func (f *fakeSearch) handleSearch(w http.ResponseWriter, index string, body []byte) {
	if _, ok := f.indexes[index]; !ok {
		notFound(w, index)
		return
	}
	var q struct {
		Skip  int  `json:"skip"`
		Top   int  `json:"top"`
		Count bool `json:"count"`
	}
	_ = json.Unmarshal(body, &q)

	docs := f.docs[index]
	var page []string
	for i := q.Skip; i < len(docs) && i < q.Skip+q.Top; i++ {
		page = append(page, `{"@search.score":1.0,`+string(docs[i][1:]))
	}
	if q.Count {
		fmt.Fprintf(w, `{"@odata.count":%d,"value":[%s]}`, len(docs), strings.Join(page, ","))
		return
	}
	fmt.Fprintf(w, `{"value":[%s]}`, strings.Join(page, ","))
}

func (f *fakeSearch) handleUpload(w http.ResponseWriter, index string, body []byte) {
	n := f.uploads
	f.uploads++
	if status := f.failUploads[n]; status != 0 {
		w.WriteHeader(status)
		fmt.Fprint(w, `{"error":{"message":"injected failure"}}`)
		return
	}
	if _, ok := f.indexes[index]; !ok {
		notFound(w, index)
		return
	}
	var payload struct {
		Value []json.RawMessage `json:"value"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	statuses := make([]string, len(payload.Value))
	for i, d := range payload.Value {
		f.docs[index] = append(f.docs[index], d)
		statuses[i] = fmt.Sprintf(`{"key":"%d","status":true,"statusCode":201}`, i)
	}
	fmt.Fprintf(w, `{"value":[%s]}`, strings.Join(statuses, ","))
}

func makeDocs(n int, withGeo bool) []json.RawMessage {
	docs := make([]json.RawMessage, n)
	for i := range docs {
		if withGeo && i%2 == 0 {
			docs[i] = json.RawMessage(fmt.Sprintf(
				`{"id":"%d","loc":{"Latitude":38.3399,"Longitude":-86.0887,"IsEmpty":false,"Z":null,"M":null,"CoordinateSystem":{"EpsgId":4326,"Id":"4326","Name":"WGS84"}}}`, i))
			continue
		}
		docs[i] = json.RawMessage(fmt.Sprintf(`{"id":"%d","loc":null}`, i))
	}
	return docs
}
