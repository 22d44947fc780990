package conf

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/gnb-control/gnbctl/internal/params"
)

// Delta reports one applied key rewrite for audit and diff reporting.
type Delta struct {
	Key string `json:"key"`
	Old string `json:"old"`
	New string `json:"new"`
}

// assignment is one pending key rewrite.
type assignment struct {
	key   string
	value string
}

// Mutator rewrites parameter values in the configuration file. All dependent
// keys of a change are written as one unit via temp-file-then-rename, so a
// partially applied change is never observable on disk.
type Mutator struct {
	path string
}

// NewMutator creates a mutator for the configuration file at path.
func NewMutator(path string) *Mutator {
	return &Mutator{path: path}
}

// Apply validates nothing; callers validate first. It expands each change
// into its dependent key assignments, rewrites them in memory, and replaces
// the file atomically. On any error the file on disk is left untouched.
func (m *Mutator) Apply(changes []params.Change) ([]Delta, error) {
	f, err := Load(m.path)
	if err != nil {
		return nil, err
	}

	var deltas []Delta
	for _, change := range changes {
		assignments, err := expand(f, change)
		if err != nil {
			return nil, err
		}
		for _, a := range assignments {
			old, ok := f.Get(a.key)
			if !ok {
				return nil, fmt.Errorf("%w: key %q not present in %s", ErrKeyMissing, a.key, filepath.Base(m.path))
			}
			if err := f.Set(a.key, a.value); err != nil {
				return nil, err
			}
			deltas = append(deltas, Delta{Key: a.key, Old: old, New: a.value})
		}
	}

	if err := replaceFile(m.path, f.Content()); err != nil {
		return nil, err
	}
	return deltas, nil
}

// expand maps a change to the concrete configuration keys it touches.
func expand(f *File, change params.Change) ([]assignment, error) {
	switch change.Family {
	case params.FamilyBandwidth:
		scsKHz, err := fileSubcarrierSpacing(f)
		if err != nil {
			return nil, err
		}
		bwp, err := params.LookupBandwidth(change.Bandwidth, scsKHz)
		if err != nil {
			return nil, err
		}
		prb := strconv.Itoa(bwp.CarrierBandwidthPRB)
		loc := strconv.Itoa(bwp.BWPLocationAndBandwidth)
		return []assignment{
			{"dl_carrierBandwidth", prb},
			{"ul_carrierBandwidth", prb},
			{"initialDLBWPlocationAndBandwidth", loc},
			{"initialULBWPlocationAndBandwidth", loc},
		}, nil

	case params.FamilyDownlinkMCS:
		v := strconv.Itoa(change.Value)
		return []assignment{{"dl_min_mcs", v}, {"dl_max_mcs", v}}, nil

	case params.FamilyUplinkMCS:
		v := strconv.Itoa(change.Value)
		return []assignment{{"ul_min_mcs", v}, {"ul_max_mcs", v}}, nil

	case params.FamilyTxAttenuation:
		return []assignment{{"att_tx", strconv.Itoa(change.Value)}}, nil

	case params.FamilyRxAttenuation:
		return []assignment{{"att_rx", strconv.Itoa(change.Value)}}, nil

	default:
		return nil, fmt.Errorf("%w: unknown parameter family %q", params.ErrValidation, change.Family)
	}
}

// fileSubcarrierSpacing reads the downlink subcarrier spacing enum code from
// the file and translates it to kHz. Band 78 deployments run µ=1, so an
// absent key defaults to code 1 (30 kHz).
func fileSubcarrierSpacing(f *File) (int, error) {
	code := 1
	if raw, ok := f.Get("dl_subcarrierSpacing"); ok {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			// The key is present but the file content is corrupt; this is
			// a file integrity failure, not a missing key.
			return 0, fmt.Errorf("%w: dl_subcarrierSpacing value %q is not an integer", ErrAccess, raw)
		}
		code = parsed
	}
	khz, ok := params.SubcarrierSpacingKHz(code)
	if !ok {
		return 0, fmt.Errorf("%w: unrecognized subcarrier spacing code %d", params.ErrValidation, code)
	}
	return khz, nil
}

// replaceFile writes content to a temporary file in the same directory and
// renames it over path, preserving the original file's mode. The rename is
// the only visible transition, so a concurrent reader sees either the old or
// the new file in full.
func replaceFile(path, content string) error {
	mode := os.FileMode(0644)
	if info, err := os.Stat(path); err == nil {
		mode = info.Mode().Perm()
	}

	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp*")
	if err != nil {
		return fmt.Errorf("%w: creating temp file: %v", ErrAccess, err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.WriteString(content); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return fmt.Errorf("%w: writing temp file: %v", ErrAccess, err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return fmt.Errorf("%w: syncing temp file: %v", ErrAccess, err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("%w: closing temp file: %v", ErrAccess, err)
	}
	if err := os.Chmod(tmpPath, mode); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("%w: setting temp file mode: %v", ErrAccess, err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("%w: replacing %s: %v", ErrAccess, filepath.Base(path), err)
	}
	return nil
}
