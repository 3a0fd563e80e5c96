package output

import (
	"context"
	"io"

	"github.com/reliefmap/demgrid/internal/domain"
)

// MeshExporter defines the secondary port for mesh serialization. The core
// hands over an in-memory mesh; the exporter owns the encoding.
type MeshExporter interface {
	// Export writes the mesh to w.
	Export(ctx context.Context, mesh *domain.Mesh, w io.Writer) error
}
