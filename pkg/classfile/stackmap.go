package classfile

import (
	"encoding/binary"
	"io"

	"github.com/igor-laevsky/gojvm-core/pkg/bytecode"
	"github.com/igor-laevsky/gojvm-core/pkg/vmerrors"
)

// decodeStackMapTable reads a StackMapTable attribute body: u16 entry count,
// then that many frames. Only frame_type in [0,63] (same) and [252,254]
// (append) are supported; any other frame_type fails FormatError. The
// cumulative bci starts at -1 so the first frame's delta lands at exactly
// its encoded value, matching the standard's off-by-one.
func decodeStackMapTable(r io.Reader) ([]StackMapFrame, error) {
	var count uint16
	if err := binary.Read(r, binary.BigEndian, &count); err != nil {
		return nil, vmerrors.NewFormatError("reading StackMapTable entry count: %v", err)
	}

	frames := make([]StackMapFrame, 0, count)
	cumulativeBci := -1

	for i := uint16(0); i < count; i++ {
		var frameType uint8
		if err := binary.Read(r, binary.BigEndian, &frameType); err != nil {
			return nil, vmerrors.NewFormatError("reading frame %d type: %v", i, err)
		}

		switch {
		case frameType <= 63:
			cumulativeBci += int(frameType) + 1
			frames = append(frames, StackMapFrame{Bci: bytecode.Bci(cumulativeBci), Kind: FrameSame})

		case frameType >= 252 && frameType <= 254:
			var offsetDelta uint16
			if err := binary.Read(r, binary.BigEndian, &offsetDelta); err != nil {
				return nil, vmerrors.NewFormatError("reading frame %d offset_delta: %v", i, err)
			}
			cumulativeBci += int(offsetDelta) + 1

			k := int(frameType) - 251
			locals := make([]VerificationTypeInfo, k)
			for j := 0; j < k; j++ {
				v, err := decodeVerificationTypeInfo(r)
				if err != nil {
					return nil, vmerrors.NewFormatError("reading frame %d local %d: %v", i, j, err)
				}
				locals[j] = v
			}
			frames = append(frames, StackMapFrame{Bci: bytecode.Bci(cumulativeBci), Kind: FrameAppend, AppendedLocals: locals})

		default:
			return nil, vmerrors.NewFormatError("unsupported stack-map frame_type %d at entry %d", frameType, i)
		}
	}

	return frames, nil
}

func decodeVerificationTypeInfo(r io.Reader) (VerificationTypeInfo, error) {
	var tag uint8
	if err := binary.Read(r, binary.BigEndian, &tag); err != nil {
		return VerificationTypeInfo{}, err
	}

	switch tag {
	case VerifTagTop, VerifTagInteger, VerifTagFloat, VerifTagDouble, VerifTagLong,
		VerifTagNull, VerifTagUninitializedThis:
		return VerificationTypeInfo{Tag: tag}, nil

	case VerifTagObject:
		var cpIndex uint16
		if err := binary.Read(r, binary.BigEndian, &cpIndex); err != nil {
			return VerificationTypeInfo{}, err
		}
		return VerificationTypeInfo{Tag: VerifTagObject, CPoolIndex: cpIndex}, nil

	case VerifTagUninitialized:
		var bci uint16
		if err := binary.Read(r, binary.BigEndian, &bci); err != nil {
			return VerificationTypeInfo{}, err
		}
		return VerificationTypeInfo{Tag: VerifTagUninitialized, Bci: bci}, nil

	default:
		return VerificationTypeInfo{}, vmerrors.NewFormatError("unknown verification_type_info tag %d", tag)
	}
}
