package crypto

import (
	"fmt"

	"github.com/RobLovegrove/umdf-go/errs"
)

// KDFParams are the Argon2id tuning parameters stored once in the primary
// file header (spec §3 EncryptionParams) and reused for every module's key
// derivation in that container.
type KDFParams struct {
	BaseSalt    [16]byte
	MemoryCost  uint64 // KiB
	TimeCost    uint32
	Parallelism uint32
}

// DefaultKDFParams match the values the writer assigns when a password is
// supplied and no tuning override is given (spec §4.I step 3:
// "memoryCost=65536, timeCost=3, parallelism=2").
func DefaultKDFParams(baseSalt [16]byte) KDFParams {
	return KDFParams{
		BaseSalt:    baseSalt,
		MemoryCost:  65536,
		TimeCost:    3,
		Parallelism: 2,
	}
}

// Validate rejects parameters too weak to be meaningful or too large for
// the process to realistically allocate.
func (p KDFParams) Validate() error {
	if p.MemoryCost < 8*1024 {
		return fmt.Errorf("%w: memoryCost %d KiB below minimum 8192", errs.ErrKDFParamsInvalid, p.MemoryCost)
	}
	if p.TimeCost < 1 {
		return fmt.Errorf("%w: timeCost %d below minimum 1", errs.ErrKDFParamsInvalid, p.TimeCost)
	}
	if p.Parallelism < 1 {
		return fmt.Errorf("%w: parallelism %d below minimum 1", errs.ErrKDFParamsInvalid, p.Parallelism)
	}
	return nil
}
