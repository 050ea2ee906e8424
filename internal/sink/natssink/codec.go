package natssink

import (
	"DDSSpectra/internal/model"
	"errors"
	"fmt"
	"time"

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"
)

// ErrMalformed is returned when a message does not carry a snapshot.
var ErrMalformed = errors.New("malformed snapshot message")

// Encode serializes a snapshot as a protobuf Struct.
// Counters travel as protobuf numbers and are exact up to 2^53.
func Encode(snap model.Snapshot) ([]byte, error) {
	sources := make(map[string]interface{}, len(snap.Sources))
	for ip, st := range snap.Sources {
		sources[ip] = map[string]interface{}{
			"packets": st.PacketCount,
			"bytes":   st.ByteCount,
		}
	}

	pb, err := structpb.NewStruct(map[string]interface{}{
		"start":            snap.Start.UTC().Format(time.RFC3339Nano),
		"end":              snap.End.UTC().Format(time.RFC3339Nano),
		"interval_seconds": snap.Interval.Seconds(),
		"sources":          sources,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to build snapshot struct: %w", err)
	}
	return proto.Marshal(pb)
}

// Decode parses a message produced by Encode.
func Decode(data []byte) (model.Snapshot, error) {
	var pb structpb.Struct
	if err := proto.Unmarshal(data, &pb); err != nil {
		return model.Snapshot{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	fields := pb.GetFields()
	start, err := parseTime(fields, "start")
	if err != nil {
		return model.Snapshot{}, err
	}
	end, err := parseTime(fields, "end")
	if err != nil {
		return model.Snapshot{}, err
	}

	snap := model.Snapshot{
		Start:    start,
		End:      end,
		Interval: time.Duration(fields["interval_seconds"].GetNumberValue() * float64(time.Second)),
		Sources:  make(map[string]model.SourceStats),
	}
	for ip, v := range fields["sources"].GetStructValue().GetFields() {
		st := v.GetStructValue()
		if st == nil {
			return model.Snapshot{}, fmt.Errorf("%w: source %q is not an object", ErrMalformed, ip)
		}
		snap.Sources[ip] = model.SourceStats{
			PacketCount: uint64(st.GetFields()["packets"].GetNumberValue()),
			ByteCount:   uint64(st.GetFields()["bytes"].GetNumberValue()),
		}
	}
	return snap, nil
}

func parseTime(fields map[string]*structpb.Value, key string) (time.Time, error) {
	v, ok := fields[key]
	if !ok {
		return time.Time{}, fmt.Errorf("%w: missing %q", ErrMalformed, key)
	}
	t, err := time.Parse(time.RFC3339Nano, v.GetStringValue())
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: bad %q: %v", ErrMalformed, key, err)
	}
	return t, nil
}
