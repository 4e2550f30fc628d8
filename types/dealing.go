package types

import (
	"encoding/binary"

	"github.com/pkg/errors"
)

// EcdsaDealing is one dealer's cryptographic contribution to an IDKG
// transcript. Its key, (TranscriptID, DealerID), is globally unique within
// a validated pool.
type EcdsaDealing struct {
	RequestedHeight   Height
	TranscriptID      IDkgTranscriptID
	DealerID          NodeId
	OpaqueDealingByes []byte
}

// DealingKey is the pool-uniqueness key for a dealing.
type DealingKey struct {
	TranscriptID IDkgTranscriptID
	DealerID     NodeId
}

// Key returns this dealing's pool-uniqueness key.
func (d *EcdsaDealing) Key() DealingKey {
	return DealingKey{TranscriptID: d.TranscriptID, DealerID: d.DealerID}
}

// MultiSignatureShare is one signer's contribution toward a multi-signature
// over a dealing.
type MultiSignatureShare struct {
	Signer    NodeId
	ShareByes []byte
}

// EcdsaDealingSupport is a multi-signature share over a dealing, attesting
// that Signature.Signer has privately verified Content. Its key,
// (TranscriptID, DealerID, Signer), is globally unique within a validated
// pool.
type EcdsaDealingSupport struct {
	Content   EcdsaDealing
	Signature MultiSignatureShare
}

// SupportKey is the pool-uniqueness key for a dealing support.
type SupportKey struct {
	TranscriptID IDkgTranscriptID
	DealerID     NodeId
	Signer       NodeId
}

// Key returns this support's pool-uniqueness key.
func (s *EcdsaDealingSupport) Key() SupportKey {
	return SupportKey{
		TranscriptID: s.Content.TranscriptID,
		DealerID:     s.Content.DealerID,
		Signer:       s.Signature.Signer,
	}
}

// MultiSignedDealing is a dealing together with the aggregated multi-
// signature the transcript builder produced once enough supports were
// collected for it.
type MultiSignedDealing struct {
	Content   EcdsaDealing
	Signature []byte
}

// dealingWireVersion is bumped whenever the on-the-wire layout of
// EcdsaDealing changes. MarshalBinary always writes the current version;
// UnmarshalBinary rejects any other version, older or newer.
const dealingWireVersion = 1

// MarshalBinary produces a deterministic byte encoding of the dealing,
// making hashing over a dealing reproducible across replicas (the fake
// multi-signature layer signs the hash of this encoding). It is not a
// general-purpose, versioned wire protocol: it writes one version byte
// followed by every field of the dealing in a fixed order.
func (d *EcdsaDealing) MarshalBinary() ([]byte, error) {
	buf := make([]byte, 0, 1+8+8+len(d.DealerID)+len(d.OpaqueDealingByes)+16)
	buf = append(buf, dealingWireVersion)
	buf = appendUint64(buf, uint64(d.RequestedHeight))
	buf = appendUint64(buf, uint64(d.TranscriptID))
	buf = appendString(buf, string(d.DealerID))
	buf = appendBytes(buf, d.OpaqueDealingByes)
	return buf, nil
}

// UnmarshalBinary reverses MarshalBinary.
func (d *EcdsaDealing) UnmarshalBinary(data []byte) error {
	r := &wireReader{buf: data}
	version, err := r.readByte()
	if err != nil {
		return errors.Wrap(err, "reading dealing wire version")
	}
	if version != dealingWireVersion {
		return errors.Errorf("unsupported dealing wire version %d", version)
	}
	height, err := r.readUint64()
	if err != nil {
		return errors.Wrap(err, "reading requested height")
	}
	transcriptID, err := r.readUint64()
	if err != nil {
		return errors.Wrap(err, "reading transcript id")
	}
	dealerID, err := r.readString()
	if err != nil {
		return errors.Wrap(err, "reading dealer id")
	}
	opaque, err := r.readBytes()
	if err != nil {
		return errors.Wrap(err, "reading opaque dealing bytes")
	}
	if !r.exhausted() {
		return errors.New("trailing bytes after dealing")
	}

	d.RequestedHeight = Height(height)
	d.TranscriptID = IDkgTranscriptID(transcriptID)
	d.DealerID = NodeId(dealerID)
	d.OpaqueDealingByes = opaque
	return nil
}

// MarshalBinary produces a deterministic byte encoding of the dealing
// support, mirroring EcdsaDealing.MarshalBinary.
func (s *EcdsaDealingSupport) MarshalBinary() ([]byte, error) {
	content, err := s.Content.MarshalBinary()
	if err != nil {
		return nil, err
	}
	buf := make([]byte, 0, len(content)+len(s.Signature.Signer)+len(s.Signature.ShareByes)+16)
	buf = append(buf, dealingWireVersion)
	buf = appendBytes(buf, content)
	buf = appendString(buf, string(s.Signature.Signer))
	buf = appendBytes(buf, s.Signature.ShareByes)
	return buf, nil
}

// UnmarshalBinary reverses MarshalBinary.
func (s *EcdsaDealingSupport) UnmarshalBinary(data []byte) error {
	r := &wireReader{buf: data}
	version, err := r.readByte()
	if err != nil {
		return errors.Wrap(err, "reading support wire version")
	}
	if version != dealingWireVersion {
		return errors.Errorf("unsupported support wire version %d", version)
	}
	content, err := r.readBytes()
	if err != nil {
		return errors.Wrap(err, "reading dealing content")
	}
	signer, err := r.readString()
	if err != nil {
		return errors.Wrap(err, "reading signer")
	}
	share, err := r.readBytes()
	if err != nil {
		return errors.Wrap(err, "reading share bytes")
	}
	if !r.exhausted() {
		return errors.New("trailing bytes after support")
	}

	var contentDealing EcdsaDealing
	if err := contentDealing.UnmarshalBinary(content); err != nil {
		return errors.Wrap(err, "decoding dealing content")
	}

	s.Content = contentDealing
	s.Signature = MultiSignatureShare{Signer: NodeId(signer), ShareByes: share}
	return nil
}

func appendUint64(buf []byte, v uint64) []byte {
	var tmp [8]byte
	binary.BigEndian.PutUint64(tmp[:], v)
	return append(buf, tmp[:]...)
}

func appendBytes(buf []byte, b []byte) []byte {
	buf = appendUint64(buf, uint64(len(b)))
	return append(buf, b...)
}

func appendString(buf []byte, s string) []byte {
	return appendBytes(buf, []byte(s))
}

// wireReader is a minimal cursor over a length-prefixed binary encoding,
// used by the MarshalBinary/UnmarshalBinary pairs above.
type wireReader struct {
	buf []byte
	pos int
}

func (r *wireReader) readByte() (byte, error) {
	if r.pos+1 > len(r.buf) {
		return 0, errors.New("unexpected end of buffer reading byte")
	}
	b := r.buf[r.pos]
	r.pos++
	return b, nil
}

func (r *wireReader) readUint64() (uint64, error) {
	if r.pos+8 > len(r.buf) {
		return 0, errors.New("unexpected end of buffer reading uint64")
	}
	v := binary.BigEndian.Uint64(r.buf[r.pos : r.pos+8])
	r.pos += 8
	return v, nil
}

func (r *wireReader) readBytes() ([]byte, error) {
	n, err := r.readUint64()
	if err != nil {
		return nil, err
	}
	if r.pos+int(n) > len(r.buf) {
		return nil, errors.New("unexpected end of buffer reading bytes")
	}
	b := r.buf[r.pos : r.pos+int(n)]
	r.pos += int(n)
	return b, nil
}

func (r *wireReader) readString() (string, error) {
	b, err := r.readBytes()
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func (r *wireReader) exhausted() bool {
	return r.pos == len(r.buf)
}
