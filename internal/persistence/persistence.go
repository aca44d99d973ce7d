// Package persistence serializes the Security and Server objects to disk
// between runs (spec.md §6 supplement), using the same magic-prefixed,
// length-prefixed record format AVSystem's Anjay persistence module writes
// (original_source/): a 4-byte ASCII magic, then one big-endian
// uint32-length-prefixed record per Instance.
package persistence

import (
	"bytes"
	"encoding/binary"
	"io"
	"os"

	"github.com/pkg/errors"
	"golang.org/x/sys/unix"

	"github.com/1stship/lwm2mcore/internal/sdm"
	"github.com/1stship/lwm2mcore/internal/sdm/std"
)

var (
	magicSecurity = [4]byte{'S', 'E', 'C', 1}
	magicServer   = [4]byte{'S', 'R', 'V', 1}
)

// ErrBadMagic is returned when a persistence file's header doesn't match
// the expected object kind, e.g. loading a Server file as Security.
var ErrBadMagic = errors.New("persistence: magic mismatch")

// SaveSecurity writes every Security Instance's parameters to path.
func SaveSecurity(path string, obj *sdm.Object) error {
	var buf bytes.Buffer
	buf.Write(magicSecurity[:])
	for _, inst := range obj.Instances() {
		writeRecord(&buf, encodeSecurity(std.ReadSecurityParams(inst)))
	}
	return writeLocked(path, buf.Bytes())
}

// LoadSecurity reads a Security persistence file back into raw records; the
// bootstrap/seed package turns each into a Security Instance.
func LoadSecurity(path string) ([]std.SecurityParams, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if len(data) < 4 || !bytes.Equal(data[:4], magicSecurity[:]) {
		return nil, ErrBadMagic
	}
	var out []std.SecurityParams
	r := bytes.NewReader(data[4:])
	for {
		rec, err := readRecord(r)
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		p, err := decodeSecurity(rec)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}

// SaveServer writes every Server Instance's parameters to path.
func SaveServer(path string, obj *sdm.Object) error {
	var buf bytes.Buffer
	buf.Write(magicServer[:])
	for _, inst := range obj.Instances() {
		writeRecord(&buf, encodeServer(std.ReadServerParams(inst)))
	}
	return writeLocked(path, buf.Bytes())
}

// writeLocked writes data to path under an exclusive advisory lock
// (flock(2)), so two saves of the same file do not interleave their writes.
// The file is opened and truncated before the lock is taken, and
// LoadSecurity/LoadServer read without the lock.
func writeLocked(path string, data []byte) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return errors.Wrap(err, "persistence: open")
	}
	defer f.Close()
	if err := unix.Flock(int(f.Fd()), unix.LOCK_EX); err != nil {
		return errors.Wrap(err, "persistence: flock")
	}
	defer unix.Flock(int(f.Fd()), unix.LOCK_UN)
	if _, err := f.Write(data); err != nil {
		return errors.Wrap(err, "persistence: write")
	}
	return nil
}

// LoadServer reads a Server persistence file back into raw records.
func LoadServer(path string) ([]std.ServerParams, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if len(data) < 4 || !bytes.Equal(data[:4], magicServer[:]) {
		return nil, ErrBadMagic
	}
	var out []std.ServerParams
	r := bytes.NewReader(data[4:])
	for {
		rec, err := readRecord(r)
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		p, err := decodeServer(rec)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}

func writeRecord(buf *bytes.Buffer, rec []byte) {
	var lenBytes [4]byte
	binary.BigEndian.PutUint32(lenBytes[:], uint32(len(rec)))
	buf.Write(lenBytes[:])
	buf.Write(rec)
}

func readRecord(r *bytes.Reader) ([]byte, error) {
	var lenBytes [4]byte
	if _, err := io.ReadFull(r, lenBytes[:]); err != nil {
		if err == io.ErrUnexpectedEOF {
			return nil, io.EOF
		}
		return nil, err
	}
	n := binary.BigEndian.Uint32(lenBytes[:])
	rec := make([]byte, n)
	if _, err := io.ReadFull(r, rec); err != nil {
		return nil, errors.Wrap(err, "persistence: truncated record")
	}
	return rec, nil
}

func putString(buf *bytes.Buffer, s string) {
	var n [2]byte
	binary.BigEndian.PutUint16(n[:], uint16(len(s)))
	buf.Write(n[:])
	buf.WriteString(s)
}

func getString(r *bytes.Reader) (string, error) {
	var n [2]byte
	if _, err := io.ReadFull(r, n[:]); err != nil {
		return "", err
	}
	b := make([]byte, binary.BigEndian.Uint16(n[:]))
	if _, err := io.ReadFull(r, b); err != nil {
		return "", err
	}
	return string(b), nil
}

func putBytes(buf *bytes.Buffer, b []byte) {
	var n [2]byte
	binary.BigEndian.PutUint16(n[:], uint16(len(b)))
	buf.Write(n[:])
	buf.Write(b)
}

func getBytes(r *bytes.Reader) ([]byte, error) {
	var n [2]byte
	if _, err := io.ReadFull(r, n[:]); err != nil {
		return nil, err
	}
	b := make([]byte, binary.BigEndian.Uint16(n[:]))
	if _, err := io.ReadFull(r, b); err != nil {
		return nil, err
	}
	return b, nil
}

func encodeSecurity(p std.SecurityParams) []byte {
	var buf bytes.Buffer
	putString(&buf, p.ServerURI)
	var b [1]byte
	if p.BootstrapServer {
		b[0] = 1
	}
	buf.Write(b[:])
	var mode [2]byte
	binary.BigEndian.PutUint16(mode[:], uint16(p.Mode))
	buf.Write(mode[:])
	putBytes(&buf, p.Identity)
	putBytes(&buf, p.Key)
	var ssid [2]byte
	binary.BigEndian.PutUint16(ssid[:], uint16(p.ShortServerID))
	buf.Write(ssid[:])
	return buf.Bytes()
}

func decodeSecurity(rec []byte) (std.SecurityParams, error) {
	r := bytes.NewReader(rec)
	uri, err := getString(r)
	if err != nil {
		return std.SecurityParams{}, err
	}
	var bsFlag [1]byte
	if _, err := io.ReadFull(r, bsFlag[:]); err != nil {
		return std.SecurityParams{}, err
	}
	var mode [2]byte
	if _, err := io.ReadFull(r, mode[:]); err != nil {
		return std.SecurityParams{}, err
	}
	identity, err := getBytes(r)
	if err != nil {
		return std.SecurityParams{}, err
	}
	key, err := getBytes(r)
	if err != nil {
		return std.SecurityParams{}, err
	}
	var ssid [2]byte
	if _, err := io.ReadFull(r, ssid[:]); err != nil {
		return std.SecurityParams{}, err
	}
	return std.SecurityParams{
		ServerURI:       uri,
		BootstrapServer: bsFlag[0] == 1,
		Mode:            std.SecurityMode(binary.BigEndian.Uint16(mode[:])),
		Identity:        identity,
		Key:             key,
		ShortServerID:   int64(binary.BigEndian.Uint16(ssid[:])),
	}, nil
}

// encodeServer and decodeServer store ShortServerID as u16 and Lifetime as
// u32 (spec.md §6): the widest fields LwM2M actually assigns either value.
func encodeServer(p std.ServerParams) []byte {
	var buf bytes.Buffer
	var ssid [2]byte
	binary.BigEndian.PutUint16(ssid[:], uint16(p.ShortServerID))
	buf.Write(ssid[:])
	var lt [4]byte
	binary.BigEndian.PutUint32(lt[:], uint32(p.Lifetime))
	buf.Write(lt[:])
	putString(&buf, p.Binding)
	return buf.Bytes()
}

func decodeServer(rec []byte) (std.ServerParams, error) {
	r := bytes.NewReader(rec)
	var ssid [2]byte
	if _, err := io.ReadFull(r, ssid[:]); err != nil {
		return std.ServerParams{}, err
	}
	var lt [4]byte
	if _, err := io.ReadFull(r, lt[:]); err != nil {
		return std.ServerParams{}, err
	}
	binding, err := getString(r)
	if err != nil {
		return std.ServerParams{}, err
	}
	return std.ServerParams{
		ShortServerID: int64(binary.BigEndian.Uint16(ssid[:])),
		Lifetime:      int64(binary.BigEndian.Uint32(lt[:])),
		Binding:       binding,
	}, nil
}
