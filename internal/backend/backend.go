// Package backend defines the target-architecture contract of spec.md
// §6/§9: an Architecture enum, each architecture's data model (consumed
// by internal/types for sizing — REDESIGN FLAG 3), and the Backend
// interface that turns lowered IR into target-specific output.
//
// Per spec.md §1/§9, a backend is a self-contained template and only one
// needs a real implementation beyond interface level; this package
// registers every architecture spec.md §6 names with its DataModel, and
// provides exactly one fully-working Backend (wut4, in wut4.go)
// adapted from the teacher's lang/yasm/lang/ygen instruction set and
// Emitter. The rest return ErrBackendUnimplemented from Emit.
package backend

import (
	"errors"
	"io"

	"github.com/gmofishsauce/occ/internal/ir"
	"github.com/gmofishsauce/occ/internal/types"
)

// Architecture identifies a target instruction set + ABI variant.
type Architecture string

const (
	WUT4    Architecture = "wut4"
	X86_64  Architecture = "x86_64"
	X86_32  Architecture = "x86_32"
	S370    Architecture = "s370"
	S370XA  Architecture = "s370xa"
	S390    Architecture = "s390"
	S390Z   Architecture = "s390z"
	PPC32   Architecture = "ppc32"
	PPC64   Architecture = "ppc64"
	PPC64LE Architecture = "ppc64le"
	ARM64   Architecture = "arm64"
)

// ErrBackendUnimplemented is returned by Emit on every architecture
// beyond wut4: these are registered at interface/data-model level only,
// per spec.md's explicit backend Non-goal.
var ErrBackendUnimplemented = errors.New("backend: code generation not implemented for this architecture")

// Backend turns a lowered ir.Program into target output.
type Backend interface {
	Architecture() Architecture
	DataModel() types.DataModel
	Emit(prog *ir.Program, w io.Writer) error
}

var dataModels = map[Architecture]types.DataModel{
	WUT4: {
		Name: "wut4", PointerWidth: 2, ShortWidth: 2, IntWidth: 2, LongWidth: 4, LongLongWidth: 8,
		FloatWidth: 4, DoubleWidth: 8, LongDoubleWidth: 8,
		Endian: types.LittleEndian, StackGrowsDown: true, MaxAlign: 4,
	},
	X86_64: {
		Name: "x86_64", PointerWidth: 8, ShortWidth: 2, IntWidth: 4, LongWidth: 8, LongLongWidth: 8,
		FloatWidth: 4, DoubleWidth: 8, LongDoubleWidth: 16,
		Endian: types.LittleEndian, StackGrowsDown: true, MaxAlign: 16,
	},
	X86_32: {
		Name: "x86_32", PointerWidth: 4, ShortWidth: 2, IntWidth: 4, LongWidth: 4, LongLongWidth: 8,
		FloatWidth: 4, DoubleWidth: 8, LongDoubleWidth: 12,
		Endian: types.LittleEndian, StackGrowsDown: true, MaxAlign: 4,
	},
	S370: {
		Name: "s370", PointerWidth: 4, ShortWidth: 2, IntWidth: 4, LongWidth: 4, LongLongWidth: 8,
		FloatWidth: 4, DoubleWidth: 8, LongDoubleWidth: 8,
		Endian: types.BigEndian, StackGrowsDown: false, MaxAlign: 8,
	},
	S370XA: {
		Name: "s370xa", PointerWidth: 4, ShortWidth: 2, IntWidth: 4, LongWidth: 4, LongLongWidth: 8,
		FloatWidth: 4, DoubleWidth: 8, LongDoubleWidth: 8,
		Endian: types.BigEndian, StackGrowsDown: false, MaxAlign: 8,
	},
	S390: {
		Name: "s390", PointerWidth: 4, ShortWidth: 2, IntWidth: 4, LongWidth: 4, LongLongWidth: 8,
		FloatWidth: 4, DoubleWidth: 8, LongDoubleWidth: 8,
		Endian: types.BigEndian, StackGrowsDown: true, MaxAlign: 8,
	},
	S390Z: {
		Name: "s390z", PointerWidth: 8, ShortWidth: 2, IntWidth: 4, LongWidth: 8, LongLongWidth: 8,
		FloatWidth: 4, DoubleWidth: 8, LongDoubleWidth: 8,
		Endian: types.BigEndian, StackGrowsDown: true, MaxAlign: 8,
	},
	PPC32: {
		Name: "ppc32", PointerWidth: 4, ShortWidth: 2, IntWidth: 4, LongWidth: 4, LongLongWidth: 8,
		FloatWidth: 4, DoubleWidth: 8, LongDoubleWidth: 8,
		Endian: types.BigEndian, StackGrowsDown: true, MaxAlign: 8,
	},
	PPC64: {
		Name: "ppc64", PointerWidth: 8, ShortWidth: 2, IntWidth: 4, LongWidth: 8, LongLongWidth: 8,
		FloatWidth: 4, DoubleWidth: 8, LongDoubleWidth: 16,
		Endian: types.BigEndian, StackGrowsDown: true, MaxAlign: 16,
	},
	PPC64LE: {
		Name: "ppc64le", PointerWidth: 8, ShortWidth: 2, IntWidth: 4, LongWidth: 8, LongLongWidth: 8,
		FloatWidth: 4, DoubleWidth: 8, LongDoubleWidth: 16,
		Endian: types.LittleEndian, StackGrowsDown: true, MaxAlign: 16,
	},
	ARM64: {
		Name: "arm64", PointerWidth: 8, ShortWidth: 2, IntWidth: 4, LongWidth: 8, LongLongWidth: 8,
		FloatWidth: 4, DoubleWidth: 8, LongDoubleWidth: 16,
		Endian: types.LittleEndian, StackGrowsDown: true, MaxAlign: 16,
	},
}

// DataModelFor returns arch's data model, used by internal/types.NewContext.
func DataModelFor(arch Architecture) (types.DataModel, bool) {
	m, ok := dataModels[arch]
	return m, ok
}

// stubBackend implements Backend for every architecture beyond wut4.
type stubBackend struct {
	arch  Architecture
	model types.DataModel
}

func (s *stubBackend) Architecture() Architecture   { return s.arch }
func (s *stubBackend) DataModel() types.DataModel   { return s.model }
func (s *stubBackend) Emit(*ir.Program, io.Writer) error { return ErrBackendUnimplemented }

// New returns the Backend for arch: the fully-implemented wut4 backend,
// or an interface-level stub for every other registered architecture.
func New(arch Architecture) (Backend, bool) {
	model, ok := dataModels[arch]
	if !ok {
		return nil, false
	}
	if arch == WUT4 {
		return newWut4Backend(model), true
	}
	return &stubBackend{arch: arch, model: model}, true
}

// AllArchitectures lists every registered architecture.
func AllArchitectures() []Architecture {
	return []Architecture{WUT4, X86_64, X86_32, S370, S370XA, S390, S390Z, PPC32, PPC64, PPC64LE, ARM64}
}
