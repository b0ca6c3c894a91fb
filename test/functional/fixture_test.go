package functional

import (
	"archive/tar"
	"bytes"
	"compress/gzip"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"net/http/httptest"

	"github.com/zerobrew/zerobrew/internal/formula"
	"github.com/zerobrew/zerobrew/internal/platform"
)

// bottleFile builds a gzipped tar bottle archive rooted at name/version,
// mirroring the layout internal/store expects: a top-level directory per
// Cellar subdirectory (bin, lib, ...), with @@HOMEBREW_PREFIX@@ placeholders
// left for relocation.
func bottleFile(name, version string, files map[string]string) []byte {
	var buf bytes.Buffer
	gzw := gzip.NewWriter(&buf)
	tw := tar.NewWriter(gzw)

	for rel, content := range files {
		path := name + "/" + version + "/" + rel
		hdr := &tar.Header{Name: path, Mode: 0755, Size: int64(len(content))}
		if err := tw.WriteHeader(hdr); err != nil {
			panic(err)
		}
		if _, err := tw.Write([]byte(content)); err != nil {
			panic(err)
		}
	}

	if err := tw.Close(); err != nil {
		panic(err)
	}
	if err := gzw.Close(); err != nil {
		panic(err)
	}
	return buf.Bytes()
}

func sha256Hex(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// fixtureServer serves a formula index and the bottle archives it
// references, standing in for formulae.brew.sh + ghcr.io in the test
// environment.
type fixtureServer struct {
	*httptest.Server
	mux *http.ServeMux
}

func newFixtureServer() *fixtureServer {
	mux := http.NewServeMux()
	s := &fixtureServer{mux: mux}
	s.Server = httptest.NewServer(mux)
	return s
}

// addBottle registers archive under /bottles/<name>-<version>.tar.gz and
// returns the full URL and sha256 to embed in a formula.BottleEntry.
func (s *fixtureServer) addBottle(name, version string, archive []byte) (url, sha string) {
	path := "/bottles/" + name + "-" + version + ".tar.gz"
	s.mux.HandleFunc(path, func(w http.ResponseWriter, r *http.Request) {
		w.Write(archive)
	})
	return s.URL + path, sha256Hex(archive)
}

// serveIndex registers /formula.json returning records, JSON-encoded the
// same way the upstream Homebrew API does (a bare array).
func (s *fixtureServer) serveIndex(records []*formula.Record) {
	s.mux.HandleFunc("/formula.json", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(records)
	})
}

func (s *fixtureServer) indexURL() string {
	return s.URL + "/formula.json"
}

// jqRecord builds a dependency-free formula whose bottle is a single
// executable shell script at bin/jq.
func jqRecord(srv *fixtureServer, tag, version string) *formula.Record {
	archive := bottleFile("jq", version, map[string]string{
		"bin/jq": "#!/bin/sh\necho @@HOMEBREW_PREFIX@@/bin/jq\n",
	})
	url, sha := srv.addBottle("jq", version, archive)
	return &formula.Record{
		Name:      "jq",
		Version:   formula.Version{Upstream: version},
		SourceURL: url,
		Bottles: map[string]formula.BottleEntry{
			tag: {URL: url, SHA256: sha},
		},
	}
}

// fooBarRecords builds a runtime dependency chain: foo depends on bar.
func fooBarRecords(srv *fixtureServer, tag string) (*formula.Record, *formula.Record) {
	barArchive := bottleFile("bar", "1.0.0", map[string]string{
		"bin/bar": "#!/bin/sh\necho bar\n",
	})
	barURL, barSHA := srv.addBottle("bar", "1.0.0", barArchive)
	bar := &formula.Record{
		Name:      "bar",
		Version:   formula.Version{Upstream: "1.0.0"},
		SourceURL: barURL,
		Bottles: map[string]formula.BottleEntry{
			tag: {URL: barURL, SHA256: barSHA},
		},
	}

	fooArchive := bottleFile("foo", "2.0.0", map[string]string{
		"bin/foo": "#!/bin/sh\necho foo\n",
	})
	fooURL, fooSHA := srv.addBottle("foo", "2.0.0", fooArchive)
	foo := &formula.Record{
		Name:      "foo",
		Version:   formula.Version{Upstream: "2.0.0"},
		SourceURL: fooURL,
		Bottles: map[string]formula.BottleEntry{
			tag: {URL: fooURL, SHA256: fooSHA},
		},
		Dependencies: []formula.Dependency{
			{Name: "bar", Classification: formula.Runtime},
		},
	}

	return foo, bar
}

func currentPlatformTag() string {
	tag, err := platform.DetectTag()
	if err != nil {
		panic(err)
	}
	return tag
}
