package cliconfig

import "os"

// ApplyEnvConfig applies configuration from environment variables (FLIGHTREC_*).
// It respects flags that have been explicitly set (changed map).
// Returns error if any environment variable has an invalid format.
func ApplyEnvConfig(cfg *Config, changed map[string]bool) error {
	s := newConfigSetter(changed)

	s.setString("output", os.Getenv("FLIGHTREC_OUTPUT"), &cfg.Output)
	s.setString("serial", os.Getenv("FLIGHTREC_SERIAL"), &cfg.SerialDevice)
	s.setString("mqtt-url", os.Getenv("FLIGHTREC_MQTT_URL"), &cfg.MQTTURL)
	s.setString("mqtt-topic", os.Getenv("FLIGHTREC_MQTT_TOPIC"), &cfg.MQTTTopic)
	s.setString("state-dir", os.Getenv("FLIGHTREC_STATE_DIR"), &cfg.StateDir)
	s.setString("store", os.Getenv("FLIGHTREC_STORE"), &cfg.StorePath)
	s.setString("record-type", os.Getenv("FLIGHTREC_RECORD_TYPE"), &cfg.RecordType)
	s.setString("fields", os.Getenv("FLIGHTREC_FIELDS"), &cfg.Fields)
	s.setString("log-level", os.Getenv("FLIGHTREC_LOG_LEVEL"), &cfg.LogLevel)

	if err := s.setDuration("tick", os.Getenv("FLIGHTREC_TICK_INTERVAL"), &cfg.TickInterval); err != nil {
		return err
	}
	if err := s.setDuration("slow", os.Getenv("FLIGHTREC_SLOW_INTERVAL"), &cfg.SlowInterval); err != nil {
		return err
	}

	ints := []struct {
		flag string
		env  string
		dst  *int
	}{
		{"capture-bytes", "FLIGHTREC_CAPTURE_BYTES", &cfg.CaptureBytes},
		{"pretrigger", "FLIGHTREC_PRETRIGGER", &cfg.Pretrigger},
		{"posttrigger", "FLIGHTREC_POSTTRIGGER", &cfg.Posttrigger},
		{"queue-depth", "FLIGHTREC_QUEUE_DEPTH", &cfg.QueueDepth},
		{"budget-step", "FLIGHTREC_BUDGET_STEP", &cfg.BudgetStep},
		{"budget-max", "FLIGHTREC_BUDGET_MAX", &cfg.BudgetMax},
		{"pdo-every", "FLIGHTREC_PDO_EVERY", &cfg.PDOEvery},
		{"source-id", "FLIGHTREC_SOURCE_ID", &cfg.SourceID},
		{"trigger-after", "FLIGHTREC_TRIGGER_AFTER", &cfg.TriggerAfter},
		{"baud", "FLIGHTREC_SERIAL_BAUD", &cfg.SerialBaud},
	}
	for _, i := range ints {
		if err := s.setIntFromString(i.flag, os.Getenv(i.env), i.dst); err != nil {
			return err
		}
	}

	if err := s.setFloatFromString("trigger-level", os.Getenv("FLIGHTREC_TRIGGER_LEVEL"), &cfg.TriggerLevel); err != nil {
		return err
	}
	if err := s.setFloatFromString("reference", os.Getenv("FLIGHTREC_REFERENCE"), &cfg.Reference); err != nil {
		return err
	}

	s.setBoolFromString("crc", os.Getenv("FLIGHTREC_CRC"), &cfg.CRC)
	s.setBoolFromString("once", os.Getenv("FLIGHTREC_ONCE"), &cfg.Once)
	s.setBoolFromString("watch", os.Getenv("FLIGHTREC_WATCH"), &cfg.Watch)

	return nil
}
