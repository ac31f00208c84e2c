package config

import (
	"fmt"
	"strings"
)

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("config: %s: %s", e.Field, e.Message)
}

// ValidationErrors is a collection of validation errors.
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}
	var msgs []string
	for _, err := range e {
		msgs = append(msgs, err.Error())
	}
	return strings.Join(msgs, "; ")
}

// Fields returns the names of the offending fields.
func (e ValidationErrors) Fields() []string {
	fields := make([]string, 0, len(e))
	for _, err := range e {
		fields = append(fields, err.Field)
	}
	return fields
}

// ValidateConfig performs validation of the whole configuration.
func ValidateConfig(c *Config) error {
	var errs ValidationErrors

	if c.Version < 1 || c.Version > Version {
		errs = append(errs, ValidationError{
			Field:   "version",
			Message: fmt.Sprintf("unsupported version %d (current: %d)", c.Version, Version),
		})
	}

	errs = append(errs, validateHistory(&c.History)...)
	errs = append(errs, validateSensor(&c.Sensor)...)
	errs = append(errs, validateMonitors(&c.Monitors)...)
	errs = append(errs, validateDaemon(&c.Daemon)...)
	errs = append(errs, validateJournal(&c.Journal)...)
	errs = append(errs, validateLogging(&c.Logging)...)

	if len(errs) > 0 {
		return errs
	}
	return nil
}

func validateHistory(h *HistoryConfig) ValidationErrors {
	var errs ValidationErrors

	if h.Path == "" {
		errs = append(errs, *RequiredFieldError("history.path"))
	}
	if h.PromotionMinutes < 1 {
		errs = append(errs, ValidationError{
			Field:   "history.promotion_minutes",
			Message: "promotion window must be at least 1 minute",
		})
	}

	return errs
}

func validateSensor(s *SensorConfig) ValidationErrors {
	var errs ValidationErrors

	switch s.Backend {
	case "iio", "sysfs":
	case "serial":
		errs = append(errs, validateSerial(&s.Serial)...)
	default:
		errs = append(errs, ValidationError{
			Field:   "sensor.backend",
			Message: fmt.Sprintf("invalid sensor backend: %s (valid: iio, serial, sysfs)", s.Backend),
		})
	}

	if s.Backend == "sysfs" && s.SysfsDevice == "" {
		errs = append(errs, *RequiredFieldError("sensor.sysfs_device"))
	}

	if s.Samples < 1 || s.Samples > 100 {
		errs = append(errs, *RangeError("sensor.samples", 1, 100))
	}
	if s.SampleIntervalMs < 0 {
		errs = append(errs, ValidationError{
			Field:   "sensor.sample_interval_ms",
			Message: "sample interval cannot be negative",
		})
	}

	return errs
}

func validateSerial(s *SerialConfig) ValidationErrors {
	var errs ValidationErrors

	if s.Port == "" {
		errs = append(errs, *RequiredFieldError("sensor.serial.port"))
	}
	if s.BaudRate <= 0 {
		errs = append(errs, ValidationError{
			Field:   "sensor.serial.baud_rate",
			Message: "baud rate must be positive",
		})
	}
	if s.DataBits < 5 || s.DataBits > 8 {
		errs = append(errs, *RangeError("sensor.serial.data_bits", 5, 8))
	}
	if s.StopBits != 1 && s.StopBits != 2 {
		errs = append(errs, ValidationError{
			Field:   "sensor.serial.stop_bits",
			Message: "stop bits must be 1 or 2",
		})
	}
	switch strings.ToUpper(s.Parity) {
	case "N", "E", "O", "NONE", "EVEN", "ODD":
	default:
		errs = append(errs, ValidationError{
			Field:   "sensor.serial.parity",
			Message: fmt.Sprintf("unsupported parity %q: expected N, E, or O", s.Parity),
		})
	}
	if s.ReadTimeoutMs < 1 {
		errs = append(errs, ValidationError{
			Field:   "sensor.serial.read_timeout_ms",
			Message: "read timeout must be positive",
		})
	}

	return errs
}

func validateMonitors(m *MonitorsConfig) ValidationErrors {
	var errs ValidationErrors

	switch m.Backend {
	case "ddcutil":
		if m.DdcutilPath == "" {
			errs = append(errs, *RequiredFieldError("monitors.ddcutil_path"))
		}
	case "backlight":
		if m.BacklightDir == "" {
			errs = append(errs, *RequiredFieldError("monitors.backlight_dir"))
		}
	default:
		errs = append(errs, ValidationError{
			Field:   "monitors.backend",
			Message: fmt.Sprintf("invalid monitor backend: %s (valid: ddcutil, backlight)", m.Backend),
		})
	}

	for _, d := range m.Displays {
		if d < 1 {
			errs = append(errs, ValidationError{
				Field:   "monitors.displays",
				Message: fmt.Sprintf("display numbers start at 1, got %d", d),
			})
		}
	}

	if m.TimeoutSec < 1 {
		errs = append(errs, ValidationError{
			Field:   "monitors.timeout_sec",
			Message: "timeout must be at least 1 second",
		})
	}

	return errs
}

func validateDaemon(d *DaemonConfig) ValidationErrors {
	var errs ValidationErrors

	if d.IdleIntervalMs < 100 {
		errs = append(errs, ValidationError{
			Field:   "daemon.idle_interval_ms",
			Message: "idle interval must be at least 100ms",
		})
	}
	if d.BackoffInitialMs < 1 {
		errs = append(errs, ValidationError{
			Field:   "daemon.backoff_initial_ms",
			Message: "initial backoff must be positive",
		})
	}
	if d.BackoffMaxSec < 1 {
		errs = append(errs, ValidationError{
			Field:   "daemon.backoff_max_sec",
			Message: "maximum backoff must be at least 1 second",
		})
	}

	return errs
}

func validateJournal(j *JournalConfig) ValidationErrors {
	if j.Enabled && j.Path == "" {
		return ValidationErrors{*RequiredFieldError("journal.path")}
	}
	return nil
}

func validateLogging(l *LoggingConfig) ValidationErrors {
	var errs ValidationErrors

	switch l.Level {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, ValidationError{
			Field:   "logging.level",
			Message: fmt.Sprintf("invalid log level: %s (valid: debug, info, warn, error)", l.Level),
		})
	}

	switch l.Format {
	case "text", "json":
	default:
		errs = append(errs, ValidationError{
			Field:   "logging.format",
			Message: fmt.Sprintf("invalid log format: %s (valid: text, json)", l.Format),
		})
	}

	switch l.Output {
	case "stdout", "stderr":
	case "file", "both":
		if l.FilePath == "" {
			errs = append(errs, ValidationError{
				Field:   "logging.file_path",
				Message: "file path is required when output is 'file'",
			})
		}
	default:
		errs = append(errs, ValidationError{
			Field:   "logging.output",
			Message: fmt.Sprintf("invalid log output: %s (valid: stdout, stderr, file, both)", l.Output),
		})
	}

	if l.MaxSizeMB < 1 {
		errs = append(errs, ValidationError{
			Field:   "logging.max_size_mb",
			Message: "max size must be at least 1 MB",
		})
	}
	if l.MaxBackups < 0 {
		errs = append(errs, ValidationError{
			Field:   "logging.max_backups",
			Message: "max backups cannot be negative",
		})
	}

	return errs
}

// RequiredFieldError creates an error for a missing required field.
func RequiredFieldError(field string) *ValidationError {
	return &ValidationError{
		Field:   field,
		Message: "required field is missing",
	}
}

// RangeError creates an error for a value outside its allowed range.
func RangeError(field string, min, max interface{}) *ValidationError {
	return &ValidationError{
		Field:   field,
		Message: fmt.Sprintf("value must be between %v and %v", min, max),
	}
}
