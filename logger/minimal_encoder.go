package logger

import (
	"fmt"
	"math"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/buffer"
	"go.uber.org/zap/zapcore"
)

const (
	colorReset = "\x1b[0m"
	colorBold  = "\x1b[1m"
)

// Gruvbox Dark color palette (warm, muted, easy on eyes)
type palette struct {
	fg       string
	aqua     string
	orange   string
	yellow   string
	green    string
	blue     string
	red      string
	redBg    string
	yellowBg string
}

var colors = palette{
	fg:       "\x1b[38;5;223m", // Soft cream (#ebdbb2)
	aqua:     "\x1b[38;5;108m", // Muted cyan-green (#8ec07c)
	orange:   "\x1b[38;5;208m", // Warm orange (#fe8019)
	yellow:   "\x1b[38;5;214m", // Soft yellow (#fabd2f)
	green:    "\x1b[38;5;142m", // Muted green (#b8bb26)
	blue:     "\x1b[38;5;109m", // Soft blue (#83a598)
	red:      "\x1b[38;5;167m", // Warm red (#fb4934)
	redBg:    "\x1b[48;5;88m",  // Dark red background
	yellowBg: "\x1b[48;5;58m",  // Dark yellow background
}

// minimalEncoder implements a calm, compact console encoder.
// Format: "13:04:35  engine  Disposition reached  id=HR_STATE disposition=valid"
type minimalEncoder struct {
	zapcore.Encoder // Embedded base encoder for field serialization
	buf             *buffer.Buffer
}

func newMinimalEncoder() *minimalEncoder {
	baseEncoder := zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig())
	return &minimalEncoder{
		Encoder: baseEncoder,
		buf:     buffer.NewPool().Get(),
	}
}

func (enc *minimalEncoder) Clone() zapcore.Encoder {
	return &minimalEncoder{
		Encoder: enc.Encoder.Clone(),
		buf:     buffer.NewPool().Get(),
	}
}

func (enc *minimalEncoder) EncodeEntry(ent zapcore.Entry, fields []zapcore.Field) (*buffer.Buffer, error) {
	final := buffer.NewPool().Get()

	// Time
	final.AppendString(colors.aqua)
	final.AppendString(ent.Time.Format("15:04:05"))
	final.AppendString(colorReset)

	// Level: only shown for WARN and above
	if ent.Level > zapcore.InfoLevel {
		final.AppendString("  ")
		final.AppendString(levelColorString(ent.Level))
	}

	// Component name for visual grouping
	if ent.LoggerName != "" {
		final.AppendString("  ")
		final.AppendString(componentColor(ent.LoggerName))
		final.AppendString(ent.LoggerName)
		final.AppendString(colorReset)
	}

	// Message
	final.AppendString("  ")
	final.AppendString(colors.fg)
	final.AppendString(ent.Message)
	final.AppendString(colorReset)

	// Fields as key=value pairs, values colored by kind
	for _, field := range fields {
		final.AppendString("  ")
		final.AppendString(field.Key)
		final.AppendString("=")
		final.AppendString(fieldColor(field.Key))
		final.AppendString(fieldValue(field))
		final.AppendString(colorReset)
	}

	final.AppendString("\n")
	return final, nil
}

// levelColorString returns bold + colored + background for WARN/ERROR
func levelColorString(level zapcore.Level) string {
	switch level {
	case zapcore.WarnLevel:
		return colorBold + colors.yellowBg + colors.yellow + "WARN" + colorReset
	case zapcore.ErrorLevel:
		return colorBold + colors.redBg + colors.red + "ERROR" + colorReset
	case zapcore.DPanicLevel, zapcore.PanicLevel, zapcore.FatalLevel:
		return colorBold + colors.redBg + colors.red + level.CapitalString() + colorReset
	default:
		return ""
	}
}

// componentColor hashes the component name for a stable per-component color.
func componentColor(name string) string {
	hash := 0
	for _, c := range name {
		hash += int(c)
	}
	if hash%2 == 0 {
		return colors.orange
	}
	return colors.yellow
}

// fieldColor picks a value color by key: identifiers blue, counts/costs green.
func fieldColor(key string) string {
	switch key {
	case "id", "definition", "run_id", "type", "concept_type", "path":
		return colors.blue
	case "attempt", "attempts", "cost", "token_cost", "findings", "workers", "total":
		return colors.green
	case "disposition", "status":
		return colors.aqua
	default:
		return colors.fg
	}
}

// fieldValue extracts a printable value from a zap field.
func fieldValue(field zapcore.Field) string {
	switch field.Type {
	case zapcore.StringType:
		return field.String
	case zapcore.Int64Type, zapcore.Int32Type, zapcore.Int16Type, zapcore.Int8Type,
		zapcore.Uint64Type, zapcore.Uint32Type, zapcore.Uint16Type, zapcore.Uint8Type:
		return fmt.Sprintf("%d", field.Integer)
	case zapcore.BoolType:
		if field.Integer == 1 {
			return "true"
		}
		return "false"
	case zapcore.Float64Type:
		// zap stores floats as raw bits in Integer
		f := math.Float64frombits(uint64(field.Integer))
		return strings.TrimRight(strings.TrimRight(fmt.Sprintf("%.4f", f), "0"), ".")
	case zapcore.Float32Type:
		f := math.Float32frombits(uint32(field.Integer))
		return strings.TrimRight(strings.TrimRight(fmt.Sprintf("%.4f", f), "0"), ".")
	case zapcore.ErrorType:
		if err, ok := field.Interface.(error); ok {
			return err.Error()
		}
	case zapcore.DurationType:
		return fmt.Sprintf("%dms", field.Integer/1e6)
	}
	if field.Interface != nil {
		return fmt.Sprintf("%v", field.Interface)
	}
	return ""
}
