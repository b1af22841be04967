package layoutmap

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"

	"github.com/bmatcuk/doublestar/v4"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/Sumatoshi-tech/cutfang/pkg/clip"
	"github.com/Sumatoshi-tech/cutfang/pkg/layout"
)

// LayoutGlob matches the layout files of a set.
const LayoutGlob = "**/*.lay"

// RebuildResult reports what Rebuild read.
type RebuildResult struct {
	Map     *Map
	Layouts int
	// Skipped maps unreadable layout paths to the reason.
	Skipped map[string]error
}

// Rebuild scans dir for layouts and builds the map from scratch. Clip
// numbers in each layout are resolved through clips; numbers it does not
// know are ignored. Unreadable layouts are skipped and reported.
func Rebuild(ctx context.Context, dir string, clips clip.Source, logger *slog.Logger) (*RebuildResult, error) {
	_, span := otel.Tracer("cutfang/layoutmap").Start(ctx, "cutfang.layoutmap.rebuild",
		trace.WithAttributes(attribute.String("layout.dir", dir)))
	defer span.End()

	if logger == nil {
		logger = slog.Default()
	}

	matches, err := doublestar.Glob(os.DirFS(dir), LayoutGlob, doublestar.WithFilesOnly())
	if err != nil {
		return nil, fmt.Errorf("scan %s: %w", dir, err)
	}

	slices.Sort(matches)

	res := &RebuildResult{Map: &Map{}, Skipped: map[string]error{}}

	for _, rel := range matches {
		path := filepath.Join(dir, filepath.FromSlash(rel))

		loaded, loadErr := layout.LoadFile(path)
		if loadErr != nil {
			logger.WarnContext(ctx, "layout skipped", "layout.path", path, "error", loadErr)
			res.Skipped[path] = loadErr

			continue
		}

		res.Layouts++

		res.Map.Update(path, loaded.List, clips)
	}

	span.SetAttributes(attribute.Int("layout.count", res.Layouts), attribute.Int("layout.skipped", len(res.Skipped)))

	return res, nil
}
