package readout

import (
	"encoding/json"
	"fmt"

	"github.com/apache/arrow/go/v14/parquet/compress"
	"gopkg.in/yaml.v3"
)

// ParquetCodec is the compression used by the Parquet sink. It reads and
// writes itself as a codec name in configuration files.
type ParquetCodec struct {
	Name string
	Code compress.Compression
}

var parquetCodecs = []ParquetCodec{
	{"uncompressed", compress.Codecs.Uncompressed},
	{"snappy", compress.Codecs.Snappy},
	{"gzip", compress.Codecs.Gzip},
	{"brotli", compress.Codecs.Brotli},
	{"zstd", compress.Codecs.Zstd},
}

func ParseParquetCodec(s string) (ParquetCodec, error) {
	for _, codec := range parquetCodecs {
		if codec.Name == s {
			return codec, nil
		}
	}
	return ParquetCodec{}, fmt.Errorf("invalid ParquetCodec: %s", s)
}

func (c ParquetCodec) String() string {
	for _, codec := range parquetCodecs {
		if codec.Code == c.Code {
			return codec.Name
		}
	}
	return "UNKNOWN"
}

func (c ParquetCodec) MarshalJSON() ([]byte, error) {
	return json.Marshal(c.String())
}

func (c *ParquetCodec) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	codec, err := ParseParquetCodec(s)
	if err != nil {
		return err
	}
	*c = codec
	return nil
}

func (c ParquetCodec) MarshalYAML() (interface{}, error) {
	return c.String(), nil
}

func (c *ParquetCodec) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	codec, err := ParseParquetCodec(s)
	if err != nil {
		return err
	}
	*c = codec
	return nil
}
