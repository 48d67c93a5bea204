// Package pda derives program-controlled addresses.
//
// An address is keccak256(program || marker || namespace || components)
// truncated to 20 bytes, with every variable-length input length-prefixed so
// distinct tuples never share a preimage. Anyone can recompute an address, but
// only code holding a Deriver can obtain the Authority that proves control
// over it, and the package is internal to the marketplace program.
package pda

import (
	"bytes"
	"encoding/binary"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
)

const marker = "ProgramDerivedAddress"

// Deriver computes addresses owned by one program.
type Deriver struct {
	program [20]byte
}

// New returns a deriver for the program identity.
func New(program [20]byte) *Deriver {
	return &Deriver{program: program}
}

// Program returns the program identity the deriver is bound to.
func (d *Deriver) Program() [20]byte { return d.program }

// Address derives the address for namespace and components without producing
// an authority.
func (d *Deriver) Address(namespace string, components ...[]byte) [20]byte {
	return derive(d.program, namespace, components)
}

// Derive returns the address for namespace and components together with the
// authority that proves program control over it.
func (d *Deriver) Derive(namespace string, components ...[]byte) ([20]byte, Authority) {
	addr := derive(d.program, namespace, components)
	seeds := make([][]byte, len(components))
	for i, c := range components {
		seeds[i] = append([]byte(nil), c...)
	}
	return addr, Authority{
		program:    d.program,
		namespace:  namespace,
		components: seeds,
		address:    addr,
		sealed:     true,
	}
}

// Authority is the capability to move assets out of a program-derived
// address. Its fields are unexported so only a Deriver can produce a usable
// value; the zero value authorises nothing.
type Authority struct {
	program    [20]byte
	namespace  string
	components [][]byte
	address    [20]byte
	sealed     bool
}

// Address returns the address this authority controls.
func (a Authority) Address() [20]byte { return a.address }

// Namespace returns the derivation namespace.
func (a Authority) Namespace() string { return a.namespace }

// Verify reports whether the authority was produced by a deriver and
// re-derives exactly addr.
func (a Authority) Verify(addr [20]byte) bool {
	if !a.sealed || a.address != addr {
		return false
	}
	return derive(a.program, a.namespace, a.components) == addr
}

func derive(program [20]byte, namespace string, components [][]byte) [20]byte {
	var buf bytes.Buffer
	buf.Write(program[:])
	buf.WriteString(marker)
	writeSegment(&buf, []byte(namespace))
	for _, c := range components {
		writeSegment(&buf, c)
	}
	hash := ethcrypto.Keccak256(buf.Bytes())
	var addr [20]byte
	copy(addr[:], hash[len(hash)-20:])
	return addr
}

func writeSegment(buf *bytes.Buffer, segment []byte) {
	var size [4]byte
	binary.BigEndian.PutUint32(size[:], uint32(len(segment)))
	buf.Write(size[:])
	buf.Write(segment)
}
