package report

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// sectionsFile is the YAML layout accepted by ParseSections.
type sectionsFile struct {
	Sections []Section `yaml:"sections"`
}

// ParseSections decodes narrative sections from a YAML document of the form
//
//	sections:
//	  - title: Organizational Boundary
//	    content: |
//	      We use the **operational control** approach.
//	    subsections:
//	      - title: Facilities
//	        content: "- Plant A\n- Plant B"
//
// Unknown keys are rejected and every section needs a title.
func ParseSections(r io.Reader) ([]Section, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var f sectionsFile
	if err := dec.Decode(&f); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		return nil, fmt.Errorf("parsing report sections: %w", err)
	}
	if err := checkTitles(f.Sections, ""); err != nil {
		return nil, err
	}
	return f.Sections, nil
}

// LoadSectionsFile reads and parses a YAML sections file.
func LoadSectionsFile(path string) ([]Section, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading report sections %s: %w", path, err)
	}
	return ParseSections(bytes.NewReader(data))
}

func checkTitles(sections []Section, parent string) error {
	for i, s := range sections {
		if s.Title == "" {
			if parent == "" {
				return fmt.Errorf("%w: section %d has no title", ErrInvalidOptions, i+1)
			}
			return fmt.Errorf("%w: subsection %d of %q has no title", ErrInvalidOptions, i+1, parent)
		}
		if err := checkTitles(s.Subsections, s.Title); err != nil {
			return err
		}
	}
	return nil
}
