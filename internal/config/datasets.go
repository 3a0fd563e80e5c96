package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/reliefmap/demgrid/internal/domain"
)

// datasetSpec is the YAML shape of one dataset definition.
type datasetSpec struct {
	Name       string  `yaml:"name"`
	Format     string  `yaml:"format"`
	Extension  string  `yaml:"extension"`
	Resolution float64 `yaml:"resolution"`
}

type datasetsFile struct {
	Datasets []datasetSpec `yaml:"datasets"`
}

// LoadDatasets reads the dataset definitions file. Definitions are created
// once at configuration time and read-only afterward.
func LoadDatasets(path string) ([]domain.Dataset, error) {
	data, err := os.ReadFile(path) //#nosec G304 -- path comes from configuration
	if err != nil {
		return nil, fmt.Errorf("reading datasets file: %w", err)
	}

	var file datasetsFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parsing datasets file %s: %w", path, err)
	}
	if len(file.Datasets) == 0 {
		return nil, fmt.Errorf("datasets file %s defines no datasets", path)
	}

	datasets := make([]domain.Dataset, 0, len(file.Datasets))
	seen := make(map[string]struct{}, len(file.Datasets))
	for _, def := range file.Datasets {
		format, err := domain.ParseRasterFormat(def.Format)
		if err != nil {
			return nil, fmt.Errorf("dataset %s: %w", def.Name, err)
		}

		ds := domain.Dataset{
			Name:       def.Name,
			Format:     format,
			Extension:  def.Extension,
			Resolution: def.Resolution,
		}
		if err := ds.Validate(); err != nil {
			return nil, err
		}
		if _, dup := seen[ds.Name]; dup {
			return nil, fmt.Errorf("duplicate dataset name %q", ds.Name)
		}
		seen[ds.Name] = struct{}{}
		datasets = append(datasets, ds)
	}

	return datasets, nil
}
