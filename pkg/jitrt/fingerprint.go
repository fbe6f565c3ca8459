package jitrt

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"slices"

	"github.com/gomlx/jitrt/pkg/core/dtypes"
	"github.com/pkg/errors"
)

// Fingerprint identifies the specialization of the constrained arguments of a call: the key of the
// specialization cache of a JitExecutable.
type Fingerprint [sha256.Size]byte

// String returns the first 8 bytes in hexadecimal, enough to tell fingerprints apart in logs.
func (f Fingerprint) String() string {
	return hex.EncodeToString(f[:8])
}

// fingerprintDomain is versioned: changing what is hashed requires a new version.
const fingerprintDomain = "jitrt/specialization/v1"

// argSpecialization is what one argument is specialized to.
type argSpecialization struct {
	index      int
	constraint ArgumentConstraint
	dtype      dtypes.DType
	sizes      []int64

	// values and raw (row-major bytes) are only set for ConstraintValue.
	values []int64
	raw    []byte
}

// specializationsOf copies, from the arguments, the information needed to specialize the
// participating constraints. args must have been verified against the signature.
func specializationsOf(args []MemrefDesc, constraints []ArgumentConstraint, participates func(ArgumentConstraint) bool) ([]argSpecialization, error) {
	var specs []argSpecialization
	for ii, constraint := range constraints {
		if !participates(constraint) {
			continue
		}
		arg := args[ii]
		spec := argSpecialization{
			index:      ii,
			constraint: constraint,
			dtype:      arg.DType,
			sizes:      slices.Clone(arg.Sizes),
		}
		if constraint == ConstraintValue {
			m, err := arg.toABI()
			if err != nil {
				return nil, &ArgumentMismatchError{Index: ii, Expected: "valid memref", Got: arg.String(), Reason: err.Error()}
			}
			spec.values, err = integerValues(m)
			if err != nil {
				return nil, errors.WithMessagef(err, "argument #%d", ii)
			}
			spec.raw = m.Bytes()
		}
		specs = append(specs, spec)
	}
	return specs, nil
}

// fingerprintOf hashes the specializations with a domain separated SHA-256.
//
// Each specialization contributes its argument index, constraint, dtype and rank. Shape and value
// constraints add the sizes, and value constraints also add the row-major bytes of the argument.
func fingerprintOf(specs []argSpecialization) Fingerprint {
	h := sha256.New()
	h.Write([]byte(fingerprintDomain))
	h.Write([]byte{0})
	buf := make([]byte, 0, 64)
	for _, spec := range specs {
		buf = buf[:0]
		buf = binary.LittleEndian.AppendUint64(buf, uint64(spec.index))
		buf = binary.LittleEndian.AppendUint64(buf, uint64(spec.constraint))
		buf = binary.LittleEndian.AppendUint64(buf, uint64(spec.dtype))
		buf = binary.LittleEndian.AppendUint64(buf, uint64(len(spec.sizes)))
		if spec.constraint != ConstraintRank {
			for _, size := range spec.sizes {
				buf = binary.LittleEndian.AppendUint64(buf, uint64(size))
			}
		}
		h.Write(buf)
		if spec.constraint == ConstraintValue {
			h.Write(spec.raw)
		}
	}
	var fp Fingerprint
	h.Sum(fp[:0])
	return fp
}
