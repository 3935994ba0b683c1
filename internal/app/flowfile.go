package app

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/specialistvlad/dripflow/internal/ctxlog"
	"github.com/specialistvlad/dripflow/internal/flow"
	"github.com/specialistvlad/dripflow/internal/hclflow"
	"github.com/specialistvlad/dripflow/internal/snapshot"
)

// CSVType is the media type recorded for recipient data files.
const CSVType = "text/csv"

// loadFlow reads a JSON snapshot, or HCL from a file or directory.
func loadFlow(ctx context.Context, path string) (*flow.Graph, *snapshot.Descriptor, error) {
	logger := ctxlog.FromContext(ctx).With("path", path)
	if !strings.EqualFold(filepath.Ext(path), ".json") {
		logger.Debug("Loading HCL flow.")
		return hclflow.Load(ctx, path)
	}

	logger.Debug("Loading JSON flow.")
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open flow file: %w", err)
	}
	defer f.Close()

	p, err := snapshot.Decode(f)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read flow file %s: %w", path, err)
	}
	return snapshot.Import(p)
}

// describeData builds the attachment descriptor of a recipient data file.
func describeData(path string) (snapshot.Descriptor, error) {
	info, err := os.Stat(path)
	if err != nil {
		return snapshot.Descriptor{}, fmt.Errorf("failed to read recipient data: %w", err)
	}
	if info.IsDir() {
		return snapshot.Descriptor{}, fmt.Errorf("recipient data %s is a directory", path)
	}
	return snapshot.Descriptor{
		Name:         info.Name(),
		Size:         info.Size(),
		Type:         CSVType,
		LastModified: info.ModTime().UnixMilli(),
	}, nil
}

// convert writes the flow in the configured target format.
func (a *App) convert(g *flow.Graph, desc *snapshot.Descriptor) error {
	switch a.config.ConvertTo {
	case FormatHCL:
		return hclflow.Encode(a.outW, g, desc)
	case FormatJSON:
		p, err := snapshot.Export(g, desc)
		if err != nil {
			return err
		}
		return snapshot.Encode(a.outW, p)
	}
	return fmt.Errorf("unsupported conversion target %q", a.config.ConvertTo)
}
