package models

import (
	"encoding/hex"
	"fmt"
	"maps"
	"sort"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/samber/lo"
	"github.com/trebuchet-org/treb-migrate/internal/domain"
)

const placeholderLen = 40

// LegacyPlaceholder returns the pre-0.5 solc placeholder for a library name.
// Names longer than 36 characters are truncated by the compiler.
func LegacyPlaceholder(name string) string {
	if len(name) > placeholderLen-4 {
		name = name[:placeholderLen-4]
	}
	p := "__" + name
	return p + strings.Repeat("_", placeholderLen-len(p))
}

// HashedPlaceholder returns the solc >= 0.5 placeholder for a fully qualified
// library name such as "contracts/Lib.sol:Lib".
func HashedPlaceholder(fullyQualifiedName string) string {
	hash := crypto.Keccak256([]byte(fullyQualifiedName))
	return "__$" + hex.EncodeToString(hash)[:34] + "$__"
}

// LinkableBytecode is the working copy of a contract's creation bytecode.
// It is mutated by link steps and read once by the deploy step.
type LinkableBytecode struct {
	Name      string
	code      string
	refs      map[string]map[string][]LinkReference
	libraries map[string]common.Address
}

// NewLinkableBytecode copies the artifact's creation bytecode
func NewLinkableBytecode(name string, artifact *Artifact) *LinkableBytecode {
	refs := make(map[string]map[string][]LinkReference, len(artifact.Bytecode.LinkReferences))
	for source, libs := range artifact.Bytecode.LinkReferences {
		refs[source] = make(map[string][]LinkReference, len(libs))
		for lib, r := range libs {
			refs[source][lib] = append([]LinkReference(nil), r...)
		}
	}
	return &LinkableBytecode{
		Name:      name,
		code:      artifact.Bytecode.Hex(),
		refs:      refs,
		libraries: make(map[string]common.Address),
	}
}

// Link writes the library address over every placeholder for it. sources
// lists the fully qualified names the library may have been compiled under.
// It returns the number of placeholders replaced.
func (b *LinkableBytecode) Link(library string, sources []string, address common.Address) (int, error) {
	addr := strings.ToLower(hex.EncodeToString(address.Bytes()))
	replaced := 0

	// Positional references from Foundry style artifacts
	for source, libs := range b.refs {
		refs, ok := libs[library]
		if !ok {
			continue
		}
		for _, ref := range refs {
			start, end := ref.Start*2, (ref.Start+ref.Length)*2
			if ref.Length != common.AddressLength || end > len(b.code) {
				return replaced, fmt.Errorf("%w: invalid link reference %s:%s at %d", domain.ErrLink, source, library, ref.Start)
			}
			b.code = b.code[:start] + addr + b.code[end:]
			replaced++
		}
		delete(libs, library)
	}

	placeholders := []string{LegacyPlaceholder(library)}
	for _, fq := range sources {
		placeholders = append(placeholders, HashedPlaceholder(fq), LegacyPlaceholder(fq))
	}
	for _, p := range placeholders {
		if n := strings.Count(b.code, p); n > 0 {
			b.code = strings.ReplaceAll(b.code, p, addr)
			replaced += n
		}
	}

	if replaced == 0 {
		return 0, fmt.Errorf("%w: %s has no placeholder for %s", domain.ErrNoPlaceholder, b.Name, library)
	}
	b.libraries[library] = address
	return replaced, nil
}

// Unresolved returns the distinct placeholders still present in the bytecode.
// Hex never contains an underscore, so any "__" starts a placeholder.
func (b *LinkableBytecode) Unresolved() []string {
	seen := make(map[string]struct{})
	for rest := b.code; ; {
		i := strings.Index(rest, "__")
		if i < 0 {
			break
		}
		end := min(i+placeholderLen, len(rest))
		seen[rest[i:end]] = struct{}{}
		rest = rest[end:]
	}
	out := lo.Keys(seen)
	sort.Strings(out)
	return out
}

// Libraries returns the libraries linked so far
func (b *LinkableBytecode) Libraries() map[string]common.Address {
	return maps.Clone(b.libraries)
}

// Bytes returns the final bytecode. It fails if any placeholder is unresolved.
func (b *LinkableBytecode) Bytes() ([]byte, error) {
	if pending := b.Unresolved(); len(pending) > 0 {
		return nil, fmt.Errorf("%w: %s still needs %s", domain.ErrUnlinkedBytecode, b.Name, strings.Join(pending, ", "))
	}
	if b.code == "" {
		return nil, fmt.Errorf("%s has no creation bytecode", b.Name)
	}
	code, err := hex.DecodeString(b.code)
	if err != nil {
		return nil, fmt.Errorf("invalid bytecode for %s: %w", b.Name, err)
	}
	return code, nil
}
