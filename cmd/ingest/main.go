package main

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/jmaguas/azenha/internal/adapters/postgres"
	"github.com/jmaguas/azenha/internal/adapters/valkey"
	"github.com/jmaguas/azenha/internal/core/domain"
	"github.com/jmaguas/azenha/internal/core/ports"
	"github.com/jmaguas/azenha/internal/core/usecases"
	"github.com/jmaguas/azenha/internal/pkg/config"
	"github.com/jmaguas/azenha/internal/pkg/metrics"
)

// ---------------------------------------------------------------------------
// Manifest types
// ---------------------------------------------------------------------------

type Manifest struct {
	Source   string         `json:"source"`
	Datasets []DatasetEntry `json:"datasets"`
}

// DatasetEntry points at one municipality's inventory directory. The
// directory holds structures.csv, channels.csv and channel_points.csv.
type DatasetEntry struct {
	Municipality string `json:"municipality"`
	Slug         string `json:"slug"`
	Dir          string `json:"dir"`
}

const upsertChunk = 500

// ---------------------------------------------------------------------------
// Main
// ---------------------------------------------------------------------------

func main() {
	cfg, err := config.Load("azenha-ingest")
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	ctx := context.Background()

	db, err := postgres.New(ctx, cfg.Database.DSN())
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	defer db.Close()

	structureRepo := postgres.NewStructureRepo(db)
	channelRepo := postgres.NewChannelRepo(db)

	// Load manifest
	manifestPath := "manifest.json"
	if len(os.Args) > 1 {
		manifestPath = os.Args[1]
	}

	data, err := os.ReadFile(manifestPath)
	if err != nil {
		log.Fatalf("read manifest: %v", err)
	}

	var manifest Manifest
	if err := json.Unmarshal(data, &manifest); err != nil {
		log.Fatalf("parse manifest: %v", err)
	}

	log.Printf("Azenha inventory ingest — %d datasets from %s", len(manifest.Datasets), manifest.Source)

	// Filter datasets (optional CLI arg: slug list)
	slugFilter := map[string]bool{}
	if len(os.Args) > 2 {
		for _, s := range strings.Split(os.Args[2], ",") {
			slugFilter[strings.TrimSpace(s)] = true
		}
	}

	var wg sync.WaitGroup
	sem := make(chan struct{}, 4) // max 4 datasets in flight

	for _, ds := range manifest.Datasets {
		if len(slugFilter) > 0 && !slugFilter[ds.Slug] {
			continue
		}

		wg.Add(1)
		go func(d DatasetEntry) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			if err := ingestDataset(ctx, structureRepo, channelRepo, d); err != nil {
				log.Printf("ERROR [%s]: %v", d.Slug, err)
			}
		}(ds)
	}

	wg.Wait()

	// A bulk load bypasses the per-write change events, so drop the
	// cached export by hand. Best effort; the TTL bounds staleness.
	if cache, err := valkey.New(cfg.Valkey.Addr, cfg.Valkey.KeyPrefix); err == nil {
		exportSvc := usecases.NewExportService(structureRepo, channelRepo, cache)
		if err := exportSvc.Invalidate(ctx); err != nil {
			log.Printf("export cache invalidation failed: %v", err)
		}
		cache.Close()
	}

	log.Println("ingestion complete")
}

// ---------------------------------------------------------------------------
// Per-dataset ingestion
// ---------------------------------------------------------------------------

// ingestDataset loads one municipality directory. Channels go first so
// the structure rows can reference them.
func ingestDataset(ctx context.Context, structures ports.StructureRepository, channels ports.ChannelRepository, d DatasetEntry) error {
	log.Printf("[%s] ingesting %s", d.Slug, d.Dir)

	if err := processChannels(ctx, channels, d); err != nil {
		return fmt.Errorf("channels: %w", err)
	}
	if err := processStructures(ctx, structures, d); err != nil {
		return fmt.Errorf("structures: %w", err)
	}

	log.Printf("[%s] done", d.Slug)
	return nil
}

// ---------------------------------------------------------------------------
// Channels
// ---------------------------------------------------------------------------

type channelPoint struct {
	Lat float64
	Lng float64
	Seq int
}

func processChannels(ctx context.Context, repo ports.ChannelRepository, d DatasetEntry) error {
	metaReader, err := openCSV(filepath.Join(d.Dir, "channels.csv"))
	if err != nil {
		return err
	}
	defer metaReader.file.Close()

	type channelMeta struct {
		Name  string
		Color string
	}
	meta := map[string]channelMeta{}

	for {
		record, err := metaReader.csv.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			continue
		}
		id := getField(record, metaReader.cols, "id")
		if id == "" {
			continue
		}
		meta[id] = channelMeta{
			Name:  getField(record, metaReader.cols, "name"),
			Color: getField(record, metaReader.cols, "color"),
		}
	}

	// Vertices arrive in file order, not channel order. Group by
	// channel, then sort each group by its sequence column.
	ptsReader, err := openCSV(filepath.Join(d.Dir, "channel_points.csv"))
	if err != nil {
		return err
	}
	defer ptsReader.file.Close()

	points := map[string][]channelPoint{}
	for {
		record, err := ptsReader.csv.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			continue
		}
		id := getField(record, ptsReader.cols, "channel_id")
		lat, _ := strconv.ParseFloat(getField(record, ptsReader.cols, "lat"), 64)
		lng, _ := strconv.ParseFloat(getField(record, ptsReader.cols, "lng"), 64)
		seq, _ := strconv.Atoi(getField(record, ptsReader.cols, "sequence"))
		if id == "" {
			continue
		}
		points[id] = append(points[id], channelPoint{Lat: lat, Lng: lng, Seq: seq})
	}

	var batch []domain.Channel
	skipped := 0
	total := 0

	ids := make([]string, 0, len(points))
	for id := range points {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, id := range ids {
		pts := points[id]
		sort.Slice(pts, func(i, j int) bool { return pts[i].Seq < pts[j].Seq })

		path := make([]domain.Coordinate, 0, len(pts))
		valid := true
		for _, p := range pts {
			c := domain.Coordinate{Lng: p.Lng, Lat: p.Lat}
			if !c.Valid() {
				valid = false
				break
			}
			path = append(path, c)
		}
		if !valid {
			log.Printf("[%s]   channel %s: vertex out of range, skipped", d.Slug, id)
			skipped++
			continue
		}

		m := meta[id]
		ch, err := domain.NewChannel(id, m.Name, m.Color, path)
		if err != nil {
			log.Printf("[%s]   channel %s: %v, skipped", d.Slug, id, err)
			skipped++
			continue
		}
		ch.Municipality = d.Municipality

		batch = append(batch, *ch)
		total++

		if len(batch) >= upsertChunk {
			if err := repo.UpsertBatch(ctx, batch); err != nil {
				return err
			}
			batch = batch[:0]
		}
	}

	if len(batch) > 0 {
		if err := repo.UpsertBatch(ctx, batch); err != nil {
			return err
		}
	}

	metrics.FeaturesIngested.WithLabelValues("channels").Add(float64(total))
	log.Printf("[%s]   channels: %d (%d skipped)", d.Slug, total, skipped)
	return nil
}

// ---------------------------------------------------------------------------
// Structures
// ---------------------------------------------------------------------------

func processStructures(ctx context.Context, repo ports.StructureRepository, d DatasetEntry) error {
	reader, err := openCSV(filepath.Join(d.Dir, "structures.csv"))
	if err != nil {
		return err
	}
	defer reader.file.Close()

	var batch []domain.Structure
	skipped := 0
	total := 0

	for {
		record, err := reader.csv.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			continue
		}

		id := getField(record, reader.cols, "id")
		name := getField(record, reader.cols, "name")
		kind := domain.StructureKind(getField(record, reader.cols, "kind"))
		lat, _ := strconv.ParseFloat(getField(record, reader.cols, "lat"), 64)
		lng, _ := strconv.ParseFloat(getField(record, reader.cols, "lng"), 64)

		if id == "" || name == "" {
			skipped++
			continue
		}
		if !kind.Valid() {
			log.Printf("[%s]   structure %s: unknown kind %q, skipped", d.Slug, id, kind)
			skipped++
			continue
		}
		loc := domain.Coordinate{Lng: lng, Lat: lat}
		if !loc.Valid() {
			log.Printf("[%s]   structure %s: location out of range, skipped", d.Slug, id)
			skipped++
			continue
		}

		batch = append(batch, domain.Structure{
			ID:           id,
			Name:         name,
			Kind:         kind,
			Location:     loc,
			ChannelID:    getField(record, reader.cols, "channel_id"),
			Municipality: d.Municipality,
			Notes:        getField(record, reader.cols, "notes"),
		})
		total++

		if len(batch) >= upsertChunk {
			if err := repo.UpsertBatch(ctx, batch); err != nil {
				return err
			}
			batch = batch[:0]
		}
	}

	if len(batch) > 0 {
		if err := repo.UpsertBatch(ctx, batch); err != nil {
			return err
		}
	}

	metrics.FeaturesIngested.WithLabelValues("structures").Add(float64(total))
	log.Printf("[%s]   structures: %d (%d skipped)", d.Slug, total, skipped)
	return nil
}

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

type csvFile struct {
	file *os.File
	csv  *csv.Reader
	cols map[string]int
}

func openCSV(path string) (*csvFile, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	reader := csv.NewReader(f)
	reader.LazyQuotes = true
	header, err := reader.Read()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("read header of %s: %w", path, err)
	}
	return &csvFile{file: f, csv: reader, cols: indexColumns(header)}, nil
}

func indexColumns(header []string) map[string]int {
	m := make(map[string]int, len(header))
	for i, col := range header {
		// Strip BOM from first column
		col = strings.TrimPrefix(col, "\xef\xbb\xbf")
		m[strings.TrimSpace(col)] = i
	}
	return m
}

func getField(record []string, cols map[string]int, name string) string {
	idx, ok := cols[name]
	if !ok || idx >= len(record) {
		return ""
	}
	return strings.TrimSpace(record[idx])
}
