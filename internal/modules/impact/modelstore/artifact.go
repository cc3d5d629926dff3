package modelstore

import (
	"fmt"
	"time"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/aristath/ecovest/internal/domain"
	"github.com/aristath/ecovest/internal/modules/impact/model"
)

// artifactFormat is bumped when the on-disk envelope changes shape.
const artifactFormat = 1

const scalerPart = "scaler"

// Artifact file names, one per regressor plus the scaler.
var artifactFiles = map[string]string{
	string(domain.MetricCarbon): "carbon.msgpack",
	string(domain.MetricEnergy): "energy.msgpack",
	string(domain.MetricWater):  "water.msgpack",
	scalerPart:                  "scaler.msgpack",
}

// ArtifactNames lists the artifact file names in a stable order.
func ArtifactNames() []string {
	return []string{
		artifactFiles[string(domain.MetricCarbon)],
		artifactFiles[string(domain.MetricEnergy)],
		artifactFiles[string(domain.MetricWater)],
		artifactFiles[scalerPart],
	}
}

// header is written at the front of every artifact. All four artifacts of a
// bundle carry the same BundleID, which is how a torn save is detected.
type header struct {
	Format        int       `msgpack:"format"`
	Part          string    `msgpack:"part"`
	BundleID      string    `msgpack:"bundle_id"`
	SchemaVersion string    `msgpack:"schema_version"`
	FeatureCount  int       `msgpack:"feature_count"`
	CorpusVersion string    `msgpack:"corpus_version"`
	TrainedAt     time.Time `msgpack:"trained_at"`
}

type regressorArtifact struct {
	Header    header           `msgpack:"header"`
	Regressor *model.Regressor `msgpack:"regressor"`
}

type scalerArtifact struct {
	Header header        `msgpack:"header"`
	Scaler *model.Scaler `msgpack:"scaler"`
}

func headerFor(b *model.Bundle, part string) header {
	return header{
		Format:        artifactFormat,
		Part:          part,
		BundleID:      b.ID,
		SchemaVersion: b.SchemaVersion,
		FeatureCount:  b.FeatureCount,
		CorpusVersion: b.CorpusVersion,
		TrainedAt:     b.TrainedAt,
	}
}

// encodeBundle serialises a bundle into its four artifacts keyed by file name.
func encodeBundle(b *model.Bundle) (map[string][]byte, error) {
	files := make(map[string][]byte, len(artifactFiles))
	for _, m := range domain.Metrics {
		data, err := msgpack.Marshal(regressorArtifact{
			Header:    headerFor(b, string(m)),
			Regressor: b.Regressor(m),
		})
		if err != nil {
			return nil, fmt.Errorf("failed to encode %s regressor: %w", m, err)
		}
		files[artifactFiles[string(m)]] = data
	}

	data, err := msgpack.Marshal(scalerArtifact{Header: headerFor(b, scalerPart), Scaler: b.Scaler})
	if err != nil {
		return nil, fmt.Errorf("failed to encode scaler: %w", err)
	}
	files[artifactFiles[scalerPart]] = data
	return files, nil
}

// decodeBundle rebuilds a bundle from its artifacts and checks they belong
// together.
func decodeBundle(files map[string][]byte) (*model.Bundle, error) {
	var sa scalerArtifact
	if err := msgpack.Unmarshal(files[artifactFiles[scalerPart]], &sa); err != nil {
		return nil, fmt.Errorf("scaler artifact: %w", err)
	}
	ref := sa.Header
	if ref.Format != artifactFormat || ref.Part != scalerPart {
		return nil, fmt.Errorf("scaler artifact has format %d part %q", ref.Format, ref.Part)
	}

	b := &model.Bundle{
		ID:            ref.BundleID,
		SchemaVersion: ref.SchemaVersion,
		FeatureCount:  ref.FeatureCount,
		CorpusVersion: ref.CorpusVersion,
		TrainedAt:     ref.TrainedAt,
		Scaler:        sa.Scaler,
	}

	for _, m := range domain.Metrics {
		var ra regressorArtifact
		if err := msgpack.Unmarshal(files[artifactFiles[string(m)]], &ra); err != nil {
			return nil, fmt.Errorf("%s artifact: %w", m, err)
		}
		h := ra.Header
		if h.Part != string(m) {
			return nil, fmt.Errorf("%s artifact holds part %q", m, h.Part)
		}
		if h.BundleID != ref.BundleID || h.SchemaVersion != ref.SchemaVersion || h.FeatureCount != ref.FeatureCount {
			return nil, fmt.Errorf("%s artifact belongs to bundle %s (%s/%d), scaler to %s (%s/%d)",
				m, h.BundleID, h.SchemaVersion, h.FeatureCount, ref.BundleID, ref.SchemaVersion, ref.FeatureCount)
		}
		switch m {
		case domain.MetricCarbon:
			b.Carbon = ra.Regressor
		case domain.MetricEnergy:
			b.Energy = ra.Regressor
		case domain.MetricWater:
			b.Water = ra.Regressor
		}
	}
	return b, nil
}
