package sqlite

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"github.com/eringen/cmsblog/cms"
)

// fixture is the on-disk seed format. YAML is the default so JSON exports
// of the CMS load unchanged; TOML files are accepted too.
type fixture struct {
	Documents []fixtureDoc `yaml:"documents" toml:"documents"`
}

type fixtureDoc struct {
	Ref                  string         `yaml:"ref" toml:"ref"`
	ID                   string         `yaml:"id" toml:"id"`
	UID                  string         `yaml:"uid" toml:"uid"`
	Type                 string         `yaml:"type" toml:"type"`
	Tags                 []string       `yaml:"tags" toml:"tags"`
	Lang                 string         `yaml:"lang" toml:"lang"`
	FirstPublicationDate string         `yaml:"first_publication_date" toml:"first_publication_date"`
	LastPublicationDate  string         `yaml:"last_publication_date" toml:"last_publication_date"`
	Data                 map[string]any `yaml:"data" toml:"data"`
}

func (f fixtureDoc) document() (cms.Document, error) {
	doc := cms.Document{
		ID:   f.ID,
		UID:  f.UID,
		Type: f.Type,
		Tags: f.Tags,
		Lang: f.Lang,
	}
	if f.FirstPublicationDate != "" {
		t, err := cms.ParseTime(f.FirstPublicationDate)
		if err != nil {
			return cms.Document{}, err
		}
		doc.FirstPublicationDate = cms.Time{Time: t}
	}
	if f.LastPublicationDate != "" {
		t, err := cms.ParseTime(f.LastPublicationDate)
		if err != nil {
			return cms.Document{}, err
		}
		doc.LastPublicationDate = cms.Time{Time: t}
	}
	if f.Data != nil {
		raw, err := json.Marshal(f.Data)
		if err != nil {
			return cms.Document{}, err
		}
		doc.Data = raw
	}
	return doc, nil
}

// Import loads every document of a YAML or JSON fixture into the source and
// returns how many were stored.
func (s *Source) Import(ctx context.Context, r io.Reader) (int, error) {
	var fx fixture
	if err := yaml.NewDecoder(r).Decode(&fx); err != nil {
		if err == io.EOF {
			return 0, errEmptyFixture
		}
		return 0, fmt.Errorf("sqlite: import: %w", err)
	}
	return s.store(ctx, fx)
}

// ImportTOML loads a TOML fixture.
func (s *Source) ImportTOML(ctx context.Context, r io.Reader) (int, error) {
	var fx fixture
	if err := toml.NewDecoder(r).Decode(&fx); err != nil {
		return 0, fmt.Errorf("sqlite: import: %w", err)
	}
	return s.store(ctx, fx)
}

func (s *Source) store(ctx context.Context, fx fixture) (int, error) {
	if len(fx.Documents) == 0 {
		return 0, errEmptyFixture
	}
	for i, fd := range fx.Documents {
		doc, err := fd.document()
		if err != nil {
			return i, fmt.Errorf("sqlite: import document %d: %w", i, err)
		}
		if err := s.Put(ctx, cms.Ref(fd.Ref), doc); err != nil {
			return i, fmt.Errorf("sqlite: import document %d: %w", i, err)
		}
	}
	return len(fx.Documents), nil
}

// ImportFile loads the fixture at path, as TOML when the name ends in
// .toml and as YAML or JSON otherwise.
func (s *Source) ImportFile(ctx context.Context, path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		return s.ImportTOML(ctx, f)
	}
	return s.Import(ctx, f)
}
