package directory

import (
	"fmt"

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/dcrodman/mpsessions/internal/online"
)

// encodeSettings serializes the advertised custom settings of a session as a
// protobuf Struct of {"value", "advertisement"} pairs. Settings that are not
// advertised are left out.
func encodeSettings(settings map[string]online.SessionSetting) ([]byte, error) {
	fields := make(map[string]interface{}, len(settings))
	for name, setting := range settings {
		if setting.Advertisement == online.DontAdvertise {
			continue
		}
		fields[name] = map[string]interface{}{
			"value":         setting.Value,
			"advertisement": int(setting.Advertisement),
		}
	}

	s, err := structpb.NewStruct(fields)
	if err != nil {
		return nil, fmt.Errorf("error building settings: %w", err)
	}
	b, err := proto.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("error encoding settings: %w", err)
	}
	return b, nil
}

func decodeSettings(b []byte) (map[string]online.SessionSetting, error) {
	var s structpb.Struct
	if err := proto.Unmarshal(b, &s); err != nil {
		return nil, fmt.Errorf("error decoding settings: %w", err)
	}

	settings := make(map[string]online.SessionSetting, len(s.Fields))
	for name, field := range s.Fields {
		pair := field.GetStructValue()
		if pair == nil {
			return nil, fmt.Errorf("malformed setting %q", name)
		}
		settings[name] = online.SessionSetting{
			Value:         pair.Fields["value"].GetStringValue(),
			Advertisement: online.AdvertisementType(pair.Fields["advertisement"].GetNumberValue()),
		}
	}
	return settings, nil
}
