package protocol

import (
	"fmt"
	"math"

	"google.golang.org/protobuf/encoding/protowire"
)

type fieldNumber = protowire.Number

const bytesType = protowire.BytesType

// fieldWriter appends protobuf wire format fields. Scalar fields holding their
// zero value are omitted; byte fields are omitted only when nil so that a
// present-but-empty payload survives the trip.
type fieldWriter []byte

func (w *fieldWriter) putUint(num protowire.Number, v uint64) {
	if v == 0 {
		return
	}
	*w = protowire.AppendTag(*w, num, protowire.VarintType)
	*w = protowire.AppendVarint(*w, v)
}

func (w *fieldWriter) putInt(num protowire.Number, v int) {
	w.putUint(num, protowire.EncodeZigZag(int64(v)))
}

func (w *fieldWriter) putBool(num protowire.Number, v bool) {
	if v {
		w.putUint(num, 1)
	}
}

func (w *fieldWriter) putFloat(num protowire.Number, v float32) {
	if v == 0 {
		return
	}
	*w = protowire.AppendTag(*w, num, protowire.Fixed32Type)
	*w = protowire.AppendFixed32(*w, math.Float32bits(v))
}

func (w *fieldWriter) putString(num protowire.Number, v string) {
	if v == "" {
		return
	}
	*w = protowire.AppendTag(*w, num, protowire.BytesType)
	*w = protowire.AppendString(*w, v)
}

func (w *fieldWriter) putBytes(num protowire.Number, v []byte) {
	if v == nil {
		return
	}
	*w = protowire.AppendTag(*w, num, protowire.BytesType)
	*w = protowire.AppendBytes(*w, v)
}

// putMessage always writes the field, even for an empty body.
func (w *fieldWriter) putMessage(num protowire.Number, body []byte) {
	*w = protowire.AppendTag(*w, num, protowire.BytesType)
	*w = protowire.AppendBytes(*w, body)
}

// field is a single decoded wire field. raw aliases the input buffer.
type field struct {
	num protowire.Number
	typ protowire.Type
	u   uint64
	raw []byte
}

func (f field) expect(typ protowire.Type) error {
	if f.typ != typ {
		return fmt.Errorf("%w: field %d has wire type %d, want %d", ErrMalformed, f.num, f.typ, typ)
	}
	return nil
}

func (f field) toUint(p *uint64) error {
	if err := f.expect(protowire.VarintType); err != nil {
		return err
	}
	*p = f.u
	return nil
}

func (f field) toInt(p *int) error {
	if err := f.expect(protowire.VarintType); err != nil {
		return err
	}
	*p = int(protowire.DecodeZigZag(f.u))
	return nil
}

func (f field) toBool(p *bool) error {
	if err := f.expect(protowire.VarintType); err != nil {
		return err
	}
	*p = f.u != 0
	return nil
}

func (f field) toFloat(p *float32) error {
	if err := f.expect(protowire.Fixed32Type); err != nil {
		return err
	}
	*p = math.Float32frombits(uint32(f.u))
	return nil
}

func (f field) toString(p *string) error {
	if err := f.expect(protowire.BytesType); err != nil {
		return err
	}
	*p = string(f.raw)
	return nil
}

// toBytes copies the payload out of the input buffer. A zero-length field
// yields a non-nil empty slice.
func (f field) toBytes(p *[]byte) error {
	if err := f.expect(protowire.BytesType); err != nil {
		return err
	}
	*p = append([]byte{}, f.raw...)
	return nil
}

func (f field) toResult(p *ResultKind) error {
	var v uint64
	if err := f.toUint(&v); err != nil {
		return err
	}
	if v >= uint64(numResultKinds) {
		return fmt.Errorf("%w: unknown result kind %d", ErrMalformed, v)
	}
	*p = ResultKind(v)
	return nil
}

func (f field) toOperate(p *RoomOperateKind) error {
	var v uint64
	if err := f.toUint(&v); err != nil {
		return err
	}
	if v > uint64(FinishPlaying) {
		return fmt.Errorf("%w: unknown room operation %d", ErrMalformed, v)
	}
	*p = RoomOperateKind(v)
	return nil
}

// walkFields calls visit for every field in b in order. Fields of unknown
// number are passed through as well; visitors ignore what they don't know.
func walkFields(b []byte, visit func(f field) error) error {
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return fmt.Errorf("%w: %v", ErrMalformed, protowire.ParseError(n))
		}
		b = b[n:]

		f := field{num: num, typ: typ}
		switch typ {
		case protowire.VarintType:
			f.u, n = protowire.ConsumeVarint(b)
		case protowire.Fixed32Type:
			var v uint32
			v, n = protowire.ConsumeFixed32(b)
			f.u = uint64(v)
		case protowire.Fixed64Type:
			f.u, n = protowire.ConsumeFixed64(b)
		case protowire.BytesType:
			f.raw, n = protowire.ConsumeBytes(b)
		default:
			n = protowire.ConsumeFieldValue(num, typ, b)
		}
		if n < 0 {
			return fmt.Errorf("%w: field %d: %v", ErrMalformed, num, protowire.ParseError(n))
		}
		b = b[n:]

		if err := visit(f); err != nil {
			return err
		}
	}
	return nil
}
