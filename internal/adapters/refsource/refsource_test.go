package refsource

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"
)

const csvBody = "Ball Speed,Launch Angle,Launch Direction,Spin Rate\n120,17,0,6500\n"

func readAll(t *testing.T, rc io.ReadCloser) string {
	t.Helper()
	defer func() { _ = rc.Close() }()
	b, err := io.ReadAll(rc)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	return string(b)
}

func TestFile(t *testing.T) {
	Convey("Given a file source", t, func() {
		dir := t.TempDir()
		path := filepath.Join(dir, "ref.csv")
		So(os.WriteFile(path, []byte(csvBody), 0o600), ShouldBeNil)

		Convey("An existing file opens", func() {
			rc, err := NewFile(path).Open(context.Background())
			So(err, ShouldBeNil)
			So(readAll(t, rc), ShouldEqual, csvBody)
			So(NewFile(path).String(), ShouldEqual, "file:"+path)
		})

		Convey("A missing file is unavailable", func() {
			_, err := NewFile(filepath.Join(dir, "nope.csv")).Open(context.Background())
			So(errors.Is(err, ErrSourceUnavailable), ShouldBeTrue)
			So(errors.Is(err, os.ErrNotExist), ShouldBeTrue)
		})

		Convey("A cancelled context is honoured", func() {
			ctx, cancel := context.WithCancel(context.Background())
			cancel()
			_, err := NewFile(path).Open(ctx)
			So(errors.Is(err, context.Canceled), ShouldBeTrue)
		})
	})
}

func TestHTTP(t *testing.T) {
	Convey("Given an HTTP source", t, func() {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			switch r.URL.Path {
			case "/ref.csv":
				w.Header().Set("Content-Type", "text/csv")
				_, _ = io.WriteString(w, csvBody)
			case "/slow.csv":
				time.Sleep(200 * time.Millisecond)
				_, _ = io.WriteString(w, csvBody)
			default:
				http.NotFound(w, r)
			}
		}))
		defer srv.Close()

		Convey("A 200 response streams the body", func() {
			rc, err := NewHTTP(srv.URL + "/ref.csv").Open(context.Background())
			So(err, ShouldBeNil)
			So(readAll(t, rc), ShouldEqual, csvBody)
		})

		Convey("A non-200 response is rejected", func() {
			_, err := NewHTTP(srv.URL + "/missing.csv").Open(context.Background())
			So(errors.Is(err, ErrUnexpectedStatus), ShouldBeTrue)
		})

		Convey("A timeout makes the source unavailable", func() {
			_, err := NewHTTP(srv.URL+"/slow.csv", WithTimeout(20*time.Millisecond)).Open(context.Background())
			So(errors.Is(err, ErrSourceUnavailable), ShouldBeTrue)
		})

		Convey("A bad URL is unavailable", func() {
			_, err := NewHTTP("://bad").Open(context.Background())
			So(errors.Is(err, ErrSourceUnavailable), ShouldBeTrue)
		})
	})
}
