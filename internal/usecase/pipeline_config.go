package usecase

import (
	"fmt"
	"time"
)

// RerankConfig holds settings for the external re-ranking model call.
type RerankConfig struct {
	// Enabled controls whether the learned rerank term is requested.
	Enabled bool
	// Timeout bounds the model call; on expiry the term is zeroed and the
	// response is flagged degraded.
	Timeout time.Duration
	// MaxCandidates caps how many candidates are sent to the model.
	MaxCandidates int
}

// DefaultRerankConfig returns rerank defaults.
func DefaultRerankConfig() RerankConfig {
	return RerankConfig{
		Enabled:       true,
		Timeout:       5 * time.Second,
		MaxCandidates: 30,
	}
}

// Validate checks the rerank configuration.
func (c RerankConfig) Validate() error {
	if c.Enabled {
		if c.Timeout <= 0 {
			return fmt.Errorf("rerank timeout must be positive, got %v", c.Timeout)
		}
		if c.MaxCandidates <= 0 {
			return fmt.Errorf("rerank maxCandidates must be positive, got %d", c.MaxCandidates)
		}
	}
	return nil
}

// DenseRescoreConfig holds settings for the optional second-pass rescoring
// against the higher-fidelity dense vectors. The dense field is never used
// for the coarse first pass; it is too expensive there.
type DenseRescoreConfig struct {
	Enabled bool
	// Alpha blends dense similarity into the similarity term:
	// sim' = (1-Alpha)*small + Alpha*dense.
	Alpha float64
}

// DefaultDenseRescoreConfig returns dense rescoring defaults.
func DefaultDenseRescoreConfig() DenseRescoreConfig {
	return DenseRescoreConfig{Enabled: true, Alpha: 0.5}
}

// Validate checks the dense rescoring configuration.
func (c DenseRescoreConfig) Validate() error {
	if c.Enabled && (c.Alpha < 0 || c.Alpha > 1) {
		return fmt.Errorf("dense rescore alpha must be in [0, 1], got %f", c.Alpha)
	}
	return nil
}

// PhaseDeadlines bounds each streaming phase independently, so a slow
// rerank model degrades PHASE1/PHASE2 without touching the PHASE0 result
// that already went out.
type PhaseDeadlines struct {
	Phase0 time.Duration
	Phase1 time.Duration
	Phase2 time.Duration
}

// DefaultPhaseDeadlines returns per-phase deadline defaults.
func DefaultPhaseDeadlines() PhaseDeadlines {
	return PhaseDeadlines{
		Phase0: 300 * time.Millisecond,
		Phase1: 1500 * time.Millisecond,
		Phase2: 2 * time.Second,
	}
}

// Validate checks the phase deadlines.
func (d PhaseDeadlines) Validate() error {
	if d.Phase0 <= 0 || d.Phase1 <= 0 || d.Phase2 <= 0 {
		return fmt.Errorf("phase deadlines must be positive, got %v/%v/%v", d.Phase0, d.Phase1, d.Phase2)
	}
	return nil
}

// PipelineConfig holds the tunables of the streaming query pipeline.
type PipelineConfig struct {
	// MaxResults caps the caller-requested k.
	MaxResults int

	// AssemblyParallelism bounds the per-candidate feature fan-out.
	AssemblyParallelism int

	// Deadlines bounds each phase.
	Deadlines PhaseDeadlines

	// Rerank configures the model collaborator call.
	Rerank RerankConfig

	// DenseRescore configures the PHASE2 dense-vector pass.
	DenseRescore DenseRescoreConfig

	// SnapshotSampleRate is the fraction of queries whose feature matrix
	// is persisted for audit, in [0, 1].
	SnapshotSampleRate float64
}

// DefaultPipelineConfig returns pipeline defaults.
func DefaultPipelineConfig() PipelineConfig {
	return PipelineConfig{
		MaxResults:          50,
		AssemblyParallelism: 8,
		Deadlines:           DefaultPhaseDeadlines(),
		Rerank:              DefaultRerankConfig(),
		DenseRescore:        DefaultDenseRescoreConfig(),
		SnapshotSampleRate:  0.05,
	}
}

// Validate checks the pipeline configuration.
func (c PipelineConfig) Validate() error {
	if c.MaxResults <= 0 {
		return fmt.Errorf("maxResults must be positive, got %d", c.MaxResults)
	}
	if c.AssemblyParallelism <= 0 {
		return fmt.Errorf("assemblyParallelism must be positive, got %d", c.AssemblyParallelism)
	}
	if c.SnapshotSampleRate < 0 || c.SnapshotSampleRate > 1 {
		return fmt.Errorf("snapshotSampleRate must be in [0, 1], got %f", c.SnapshotSampleRate)
	}
	if err := c.Deadlines.Validate(); err != nil {
		return fmt.Errorf("deadlines invalid: %w", err)
	}
	if err := c.Rerank.Validate(); err != nil {
		return fmt.Errorf("rerank config invalid: %w", err)
	}
	if err := c.DenseRescore.Validate(); err != nil {
		return fmt.Errorf("dense rescore config invalid: %w", err)
	}
	return nil
}
