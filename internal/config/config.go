// Package config loads handsign settings from defaults, an optional JSON
// file and HANDSIGN_* environment variables, in that order of precedence.
package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"go.uber.org/multierr"

	"github.com/ayusman/handsign/internal/detector"
)

// Environment variables consulted by ApplyEnv.
const (
	EnvCamera     = "HANDSIGN_CAMERA"
	EnvDB         = "HANDSIGN_DB"
	EnvAddr       = "HANDSIGN_ADDR"
	EnvMQTTBroker = "HANDSIGN_MQTT_BROKER"
	EnvMQTTTopic  = "HANDSIGN_MQTT_TOPIC"
	EnvSchema     = "HANDSIGN_SCHEMA"
)

// DataDirName is the directory under the user's home holding the database
// and the MediaPipe helper.
const DataDirName = ".handsign"

type Config struct {
	Camera   Camera   `json:"camera"`
	Detector Detector `json:"detector"`
	Schema   string   `json:"schema"`
	Store    Store    `json:"store"`
	Server   Server   `json:"server"`
	MQTT     MQTT     `json:"mqtt"`
	Plugins  Plugins  `json:"plugins"`
}

// Camera settings. With MotionGate off every frame is classified at
// ActiveFPS; with it on the camera idles at IdleFPS until motion is seen.
type Camera struct {
	Device          int      `json:"device"`
	Mirror          bool     `json:"mirror"`
	MotionGate      bool     `json:"motionGate"`
	Width           int      `json:"width"`
	Height          int      `json:"height"`
	IdleFPS         int      `json:"idleFps"`
	ActiveFPS       int      `json:"activeFps"`
	MotionThreshold float64  `json:"motionThreshold"`
	IdleTimeout     Duration `json:"idleTimeout"`
}

type Detector struct {
	MaxHands               int     `json:"maxHands"`
	MinDetectionConfidence float64 `json:"minDetectionConfidence"`
	MinTrackingConfidence  float64 `json:"minTrackingConfidence"`
	ScriptPath             string  `json:"scriptPath,omitempty"`
	PythonPath             string  `json:"pythonPath,omitempty"`
}

type Store struct {
	Path string `json:"path"`
}

type Server struct {
	Addr      string `json:"addr"`
	StaticDir string `json:"staticDir,omitempty"`
}

// MQTT publishing is disabled while Broker is empty.
type MQTT struct {
	Broker   string `json:"broker"`
	Topic    string `json:"topic"`
	ClientID string `json:"clientId"`
	Username string `json:"username,omitempty"`
	Password string `json:"password,omitempty"`
	QoS      byte   `json:"qos"`
}

// Plugins are looked up in Dir; a missing directory means none.
type Plugins struct {
	Dir     string   `json:"dir"`
	Timeout Duration `json:"timeout"`
}

// Duration accepts either a Go duration string ("2s") or integer
// milliseconds in JSON.
type Duration time.Duration

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

func (d *Duration) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		v, err := time.ParseDuration(s)
		if err != nil {
			return err
		}
		*d = Duration(v)
		return nil
	}
	var ms int64
	if err := json.Unmarshal(b, &ms); err != nil {
		return fmt.Errorf("duration must be a string or milliseconds: %s", b)
	}
	*d = Duration(time.Duration(ms) * time.Millisecond)
	return nil
}

// Defaults returns the settings used when nothing else is configured.
func Defaults() Config {
	det := detector.DefaultConfig()
	return Config{
		Camera: Camera{
			Device:          0,
			Mirror:          true,
			Width:           640,
			Height:          480,
			IdleFPS:         5,
			ActiveFPS:       15,
			MotionThreshold: 1.0,
			IdleTimeout:     Duration(2 * time.Second),
		},
		Detector: Detector{
			MaxHands:               det.MaxHands,
			MinDetectionConfidence: det.MinConfidence,
			MinTrackingConfidence:  det.MinTrackingConf,
		},
		Schema: detector.DefaultSchemaVersion,
		Store:  Store{Path: dataPath("handsign.db")},
		Server: Server{Addr: ":8080"},
		MQTT: MQTT{
			Topic:    "handsign/gestures",
			ClientID: "handsign",
		},
		Plugins: Plugins{
			Dir:     dataPath("plugins"),
			Timeout: Duration(5 * time.Second),
		},
	}
}

// dataPath returns name inside the data directory, or name itself when
// there is no home directory.
func dataPath(name string) string {
	home, err := os.UserHomeDir()
	if err != nil {
		return name
	}
	return filepath.Join(home, DataDirName, name)
}

// Load returns Defaults overlaid by the JSON file at path (when path is not
// empty) and then by the environment. The result is validated.
func Load(path string) (Config, error) {
	cfg := Defaults()
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("read config: %w", err)
		}
		if err := Decode(bytes.NewReader(raw), &cfg); err != nil {
			return cfg, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	if err := ApplyEnv(&cfg, os.LookupEnv); err != nil {
		return cfg, err
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// Decode reads JSON from r over the values already in cfg. Fields not
// present in the document keep their current value; unknown fields are an
// error.
func Decode(r io.Reader, cfg *Config) error {
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(cfg); err != nil {
		return err
	}
	if dec.More() {
		return errors.New("trailing data after config object")
	}
	return nil
}

// ApplyEnv overrides cfg from the environment. lookup is os.LookupEnv in
// production.
func ApplyEnv(cfg *Config, lookup func(string) (string, bool)) error {
	get := func(key string) (string, bool) {
		v, ok := lookup(key)
		v = strings.TrimSpace(v)
		return v, ok && v != ""
	}

	if v, ok := get(EnvCamera); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvCamera, err)
		}
		cfg.Camera.Device = n
	}
	if v, ok := get(EnvDB); ok {
		cfg.Store.Path = v
	}
	if v, ok := get(EnvAddr); ok {
		cfg.Server.Addr = v
	}
	if v, ok := get(EnvMQTTBroker); ok {
		cfg.MQTT.Broker = v
	}
	if v, ok := get(EnvMQTTTopic); ok {
		cfg.MQTT.Topic = v
	}
	if v, ok := get(EnvSchema); ok {
		cfg.Schema = v
	}
	return nil
}

// Validate checks value ranges and that the schema version is registered.
// Every problem is reported; multierr.Errors splits them.
func (c Config) Validate() error {
	var err error
	check := func(ok bool, msg string) {
		if !ok {
			err = multierr.Append(err, errors.New(msg))
		}
	}

	check(c.Camera.Device >= 0, "camera.device must be >= 0")
	check(c.Camera.Width > 0 && c.Camera.Height > 0, "camera width and height must be > 0")
	check(c.Camera.IdleFPS > 0 && c.Camera.ActiveFPS > 0, "camera fps must be > 0")
	check(c.Camera.MotionThreshold >= 0, "camera.motionThreshold must be >= 0")
	check(c.Detector.MaxHands >= 1, "detector.maxHands must be >= 1")
	check(unit(c.Detector.MinDetectionConfidence), "detector.minDetectionConfidence must be in [0,1]")
	check(unit(c.Detector.MinTrackingConfidence), "detector.minTrackingConfidence must be in [0,1]")
	if _, schemaErr := detector.LookupSchema(c.Schema); schemaErr != nil {
		err = multierr.Append(err, fmt.Errorf("schema: %w", schemaErr))
	}
	check(c.Store.Path != "", "store.path is required")
	check(c.MQTT.Broker == "" || c.MQTT.Topic != "", "mqtt.topic is required when a broker is set")
	check(c.MQTT.QoS <= 2, "mqtt.qos must be 0, 1 or 2")
	check(c.Plugins.Timeout > 0, "plugins.timeout must be > 0")
	return err
}

func unit(v float64) bool { return v >= 0 && v <= 1 }

// DetectorConfig converts the detector section for detector.NewMediaPipeDetector.
func (c Config) DetectorConfig() detector.Config {
	out := detector.DefaultConfig()
	out.MaxHands = c.Detector.MaxHands
	out.MinConfidence = c.Detector.MinDetectionConfidence
	out.MinTrackingConf = c.Detector.MinTrackingConfidence
	out.ScriptPath = c.Detector.ScriptPath
	out.PythonPath = c.Detector.PythonPath
	return out
}
