package logging

import (
	"bytes"
	"encoding/json"
	"time"

	"go.uber.org/zap/buffer"
	"go.uber.org/zap/zapcore"
)

var bufferPool = buffer.NewPool()

// ScalyrEncoder writes one flat JSON object per entry: timestamp, level,
// message, caller and fields all at the top level.
type ScalyrEncoder struct {
	*zapcore.MapObjectEncoder // fields added through logger.With
	config                    zapcore.EncoderConfig
}

// NewScalyrEncoder creates a new Scalyr-compatible encoder
func NewScalyrEncoder(config zapcore.EncoderConfig) zapcore.Encoder {
	return &ScalyrEncoder{
		MapObjectEncoder: zapcore.NewMapObjectEncoder(),
		config:           config,
	}
}

// EncodeEntry encodes a log entry in Scalyr-compatible format
func (e *ScalyrEncoder) EncodeEntry(entry zapcore.Entry, fields []zapcore.Field) (*buffer.Buffer, error) {
	obj := map[string]interface{}{
		"timestamp": entry.Time.Format(time.RFC3339Nano),
		"level":     entry.Level.String(),
		"message":   entry.Message,
	}
	if entry.LoggerName != "" {
		obj["logger"] = entry.LoggerName
	}
	if entry.Caller.Defined {
		obj["file"] = entry.Caller.File
		obj["line"] = entry.Caller.Line
		obj["function"] = entry.Caller.Function
	}
	if entry.Stack != "" {
		obj["stack"] = entry.Stack
	}

	for k, v := range e.Fields {
		obj[k] = normalize(v)
	}
	enc := zapcore.NewMapObjectEncoder()
	for _, field := range fields {
		field.AddTo(enc)
	}
	for k, v := range enc.Fields {
		obj[k] = normalize(v)
	}

	var raw bytes.Buffer
	je := json.NewEncoder(&raw)
	je.SetEscapeHTML(false)
	if err := je.Encode(obj); err != nil {
		return nil, err
	}

	buf := bufferPool.Get()
	buf.Write(bytes.TrimRight(raw.Bytes(), "\n"))
	buf.AppendString(e.lineEnding())
	return buf, nil
}

func (e *ScalyrEncoder) lineEnding() string {
	if e.config.LineEnding != "" {
		return e.config.LineEnding
	}
	return zapcore.DefaultLineEnding
}

func normalize(v interface{}) interface{} {
	switch val := v.(type) {
	case time.Duration:
		return val.String()
	case time.Time:
		return val.Format(time.RFC3339Nano)
	default:
		return v
	}
}

// Clone creates a copy of the encoder
func (e *ScalyrEncoder) Clone() zapcore.Encoder {
	clone := zapcore.NewMapObjectEncoder()
	for k, v := range e.Fields {
		clone.Fields[k] = v
	}
	return &ScalyrEncoder{
		MapObjectEncoder: clone,
		config:           e.config,
	}
}
