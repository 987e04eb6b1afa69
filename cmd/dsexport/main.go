// dsexport: headless one-shot export. Loads a dataset bundle or an
// already extracted data directory, applies filters given on the
// command line, and writes the filtered CSV and/or image ZIP.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/joho/godotenv"

	"github.com/hunsao/ageset/bundle"
	"github.com/hunsao/ageset/dataset"
	"github.com/hunsao/ageset/filter"
	"github.com/hunsao/ageset/session"
)

// multiFlag collects repeated -where flags.
type multiFlag []string

func (m *multiFlag) String() string { return strings.Join(*m, ", ") }

func (m *multiFlag) Set(v string) error {
	*m = append(*m, v)
	return nil
}

func main() {
	var (
		locator     string
		dataDir     string
		group       string
		search      string
		wheres      multiFlag
		csvOut      string
		zipOut      string
		keepExtract bool
	)

	flag.StringVar(&locator, "bundle", "", "Bundle locator: s3:// or http(s):// URL, or a local archive path")
	flag.StringVar(&dataDir, "data", "", "Already extracted data directory (skips -bundle)")
	flag.StringVar(&group, "group", "", "Group selection (e.g. old)")
	flag.StringVar(&search, "search", "", "General search, either term or column=term")
	flag.Var(&wheres, "where", "Filter as field=value[,value...]; repeatable")
	flag.StringVar(&csvOut, "csv", "", "Write filtered table CSV to this path")
	flag.StringVar(&zipOut, "zip", "", "Write filtered image ZIP to this path")
	flag.BoolVar(&keepExtract, "keep", false, "Keep the extraction directory instead of removing it")
	flag.Parse()

	if dataDir == "" && locator == "" {
		fmt.Fprintf(os.Stderr, "Usage: %s (-bundle <locator> | -data <dir>) [-group g] [-where field=v1,v2]... [-search term] -csv out.csv -zip out.zip\n", os.Args[0])
		os.Exit(2)
	}
	if csvOut == "" && zipOut == "" {
		log.Fatal("nothing to do: pass -csv and/or -zip")
	}

	// .env carries AWS credentials and the storage bearer blob.
	_ = godotenv.Load()

	ctx := context.Background()

	if dataDir == "" {
		ws, err := bundle.NewWorkspace(locator)
		if err != nil {
			log.Fatalf("workspace: %v", err)
		}
		if !keepExtract {
			defer ws.Close()
		}

		archive := locator
		if strings.Contains(locator, "://") {
			src, err := bundle.SourceFor(locator)
			if err != nil {
				log.Fatalf("bundle source: %v", err)
			}
			if hs, ok := src.(*bundle.HTTPSource); ok {
				if cred, err := bundle.LoadCredential(); err == nil {
					hs.Token = cred.Token
				}
			}
			log.Printf("Downloading %s", locator)
			if err := bundle.FetchWithRetry(ctx, src, locator, ws.ArchivePath); err != nil {
				log.Fatalf("fetch: %v", err)
			}
			archive = ws.ArchivePath
		}

		log.Printf("Extracting %s", archive)
		if err := bundle.Extract(archive, ws.ExtractDir); err != nil {
			log.Fatalf("extract: %v", err)
		}
		dataDir, err = bundle.FindDataDir(ws.ExtractDir)
		if err != nil {
			log.Fatalf("locate data dir: %v", err)
		}
		if keepExtract {
			log.Printf("Extraction kept at %s", ws.ExtractDir)
		}
	}

	tablePath, err := bundle.FindTable(dataDir)
	if err != nil {
		log.Fatalf("locate table: %v", err)
	}

	cfg := dataset.DefaultFieldConfig()
	sess := session.New(cfg, dataset.DefaultGroupFolders())
	if err := sess.Load(tablePath, dataDir); err != nil {
		log.Fatalf("load: %v", err)
	}
	for _, warning := range sess.Warnings() {
		log.Printf("warning: %s", warning)
	}
	if dropped := sess.Dropped(); dropped > 0 {
		log.Printf("dropped %d rows during load", dropped)
	}

	sess.SetGroup(group)
	for _, clause := range wheres {
		field, values, err := parseWhere(clause)
		if err != nil {
			log.Fatalf("bad -where %q: %v", clause, err)
		}
		mode, err := modeFor(cfg, field)
		if err != nil {
			log.Fatalf("bad -where %q: %v", clause, err)
		}
		if err := sess.SetPredicate(field, mode, values); err != nil {
			log.Fatalf("bad -where %q: %v", clause, err)
		}
	}
	if search != "" {
		column, term := "", search
		if i := strings.Index(search, "="); i > 0 {
			column, term = search[:i], search[i+1:]
		}
		sess.SetSearch(column, term)
	}

	rows, err := sess.Apply()
	if err != nil {
		log.Fatalf("apply filters: %v", err)
	}
	log.Printf("%d rows match", len(rows))

	if csvOut != "" {
		f, err := os.Create(csvOut)
		if err != nil {
			log.Fatalf("create %s: %v", csvOut, err)
		}
		if err := sess.ExportTable(f); err != nil {
			f.Close()
			log.Fatalf("write csv: %v", err)
		}
		if err := f.Close(); err != nil {
			log.Fatalf("close %s: %v", csvOut, err)
		}
		log.Printf("Wrote %s", csvOut)
	}

	if zipOut != "" {
		f, err := os.Create(zipOut)
		if err != nil {
			log.Fatalf("create %s: %v", zipOut, err)
		}
		report, err := sess.ExportArchive(ctx, f)
		if err != nil {
			f.Close()
			log.Fatalf("write zip: %v", err)
		}
		if err := f.Close(); err != nil {
			log.Fatalf("close %s: %v", zipOut, err)
		}
		for _, skip := range report.Skipped {
			log.Printf("skipped %s (%s): %s", skip.Filename, skip.ID, skip.Reason)
		}
		log.Printf("Wrote %s: %d images, %d skipped", zipOut, report.Exported, len(report.Skipped))
	}
}

// parseWhere splits "field=a,b,c" into its field and values.
func parseWhere(clause string) (string, []string, error) {
	i := strings.Index(clause, "=")
	if i <= 0 || i == len(clause)-1 {
		return "", nil, fmt.Errorf("expected field=value[,value...]")
	}
	field := clause[:i]
	values := strings.Split(clause[i+1:], ",")
	for j := range values {
		values[j] = strings.TrimSpace(values[j])
	}
	return field, values, nil
}

// modeFor picks the predicate mode from the field's configured kind.
func modeFor(cfg dataset.FieldConfig, field string) (filter.Mode, error) {
	switch {
	case cfg.HasScalar(field):
		return filter.EqualsAny, nil
	case cfg.HasList(field):
		return filter.ListContainsAny, nil
	case cfg.HasKeyword(field):
		return filter.KeywordAny, nil
	}
	return 0, fmt.Errorf("%w: %q", filter.ErrUnknownField, field)
}
