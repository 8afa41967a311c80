package status

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/CircuitSetup/Flux-Capacitor-backup/internal/bttfn"
)

// StatusJSON is the top-level JSON envelope for status output.
type StatusJSON struct {
	Status StatusInner `json:"status"`
}

// StatusInner contains the status details.
type StatusInner struct {
	Event         string       `json:"event,omitempty"`
	Reason        string       `json:"reason,omitempty"`
	Session       string       `json:"session"`
	Ready         bool         `json:"ready"`
	UptimeSeconds int64        `json:"uptime_seconds"`
	StartTime     string       `json:"start_time"`
	Timestamp     string       `json:"timestamp"`
	Prop          PropJSON     `json:"prop"`
	Display       *DisplayJSON `json:"display,omitempty"`
	MQTT          MQTTStatus   `json:"mqtt"`
	Network       *NetworkJSON `json:"network,omitempty"`
	Config        ConfigJSON   `json:"config"`
}

// PropJSON is the JSON representation of the prop state.
type PropJSON struct {
	Powered     bool   `json:"powered"`
	Phase       string `json:"phase"`
	Source      string `json:"source,omitempty"`
	Rate        int    `json:"rate"`
	Pattern     int    `json:"pattern"`
	Mask        string `json:"mask"`
	Center      int    `json:"center"`
	Box         int    `json:"box"`
	FluxMode    int    `json:"flux_mode"`
	FluxPlaying bool   `json:"flux_playing"`
	IRLocked    bool   `json:"ir_locked"`
	Learning    bool   `json:"learning"`
	LearnKey    int    `json:"learn_key,omitempty"`
	ScreenSaver bool   `json:"screen_saver"`
	Night       bool   `json:"night"`
	GPSSpeed    bool   `json:"gps_speed"`
	Volume      int    `json:"volume"`
	Music       bool   `json:"music"`
	LastKey     string `json:"last_key,omitempty"`
	Trips       int    `json:"trips"`
}

// DisplayJSON reports the time circuits link.
type DisplayJSON struct {
	Host     string `json:"host"`
	Speed    *int   `json:"speed,omitempty"`
	Night    string `json:"night"`
	PowerOff string `json:"power_off"`
	Sent     uint64 `json:"sent"`
	Received uint64 `json:"received"`
	Timeouts uint64 `json:"timeouts"`
	Dropped  uint64 `json:"dropped"`
}

// MQTTStatus reports MQTT connection state.
type MQTTStatus struct {
	Connected bool   `json:"connected"`
	Broker    string `json:"broker"`
}

// NetworkJSON is the JSON representation of network info.
type NetworkJSON struct {
	Type       string `json:"type"`
	IP         string `json:"ip"`
	Status     string `json:"status"`
	Gateway    string `json:"gateway"`
	WifiStatus string `json:"wifi_status"`
	SSID       string `json:"ssid"`
}

// ConfigJSON is the JSON representation of daemon config.
type ConfigJSON struct {
	Broker             string `json:"broker"`
	HTTPAddr           string `json:"http_addr"`
	Wired              bool   `json:"tcd_wired"`
	PlaySounds         bool   `json:"play_tt_sounds"`
	UseGPSSpeed        bool   `json:"use_gps_speed"`
	FollowNight        bool   `json:"follow_night_mode"`
	FollowPower        bool   `json:"follow_fake_power"`
	ScreenSaverSeconds int64  `json:"screen_saver_seconds"`
}

func buildInner(snap Snapshot) StatusInner {
	p := snap.Prop
	phase := p.Phase
	if !snap.Updated || phase == "" {
		phase = "unknown"
	}
	inner := StatusInner{
		Session:       snap.Session,
		Ready:         snap.Updated,
		UptimeSeconds: int64(snap.Uptime().Truncate(time.Second).Seconds()),
		StartTime:     snap.StartTime.UTC().Format(time.RFC3339),
		Timestamp:     snap.Now.UTC().Format(time.RFC3339),
		Prop: PropJSON{
			Powered:     p.Powered,
			Phase:       phase,
			Source:      p.Source,
			Rate:        p.Rate,
			Pattern:     p.Pattern,
			Mask:        fmt.Sprintf("%08b", p.Mask),
			Center:      p.Center,
			Box:         p.Box,
			FluxMode:    p.FluxMode,
			FluxPlaying: p.FluxPlaying,
			IRLocked:    p.IRLocked,
			Learning:    p.Learning,
			ScreenSaver: p.ScreenSaver,
			Night:       p.Night,
			GPSSpeed:    p.GPSSpeed,
			Volume:      p.Volume,
			Music:       p.Music,
			LastKey:     p.LastKey,
			Trips:       p.Trips,
		},
		MQTT: MQTTStatus{Connected: snap.MQTTConnected, Broker: snap.Config.Broker},
		Config: ConfigJSON{
			Broker:             snap.Config.Broker,
			HTTPAddr:           snap.Config.HTTPAddr,
			Wired:              snap.Config.Wired,
			PlaySounds:         snap.Config.PlaySounds,
			UseGPSSpeed:        snap.Config.UseGPSSpeed,
			FollowNight:        snap.Config.FollowNight,
			FollowPower:        snap.Config.FollowPower,
			ScreenSaverSeconds: int64(snap.Config.ScreenSaver.Seconds()),
		},
	}
	if p.Learning {
		// 1-based so that key 0 is not dropped by omitempty.
		inner.Prop.LearnKey = p.LearnIndex + 1
	}
	return inner
}

func buildDisplay(snap Snapshot, inner *StatusInner) {
	if !snap.Prop.HaveNet {
		return
	}
	r := snap.Prop.Remote
	d := &DisplayJSON{
		Host:     snap.Config.Display,
		Night:    r.Night.String(),
		PowerOff: r.PowerOff.String(),
		Sent:     snap.Prop.NetStats.Sent,
		Received: snap.Prop.NetStats.Received,
		Timeouts: snap.Prop.NetStats.Timeouts,
		Dropped:  snap.Prop.NetStats.Dropped,
	}
	if r.Speed != bttfn.SpeedUnset {
		speed := r.Speed
		d.Speed = &speed
	}
	inner.Display = d
}

func buildNetwork(snap Snapshot, inner *StatusInner) {
	if snap.Network != nil {
		inner.Network = &NetworkJSON{
			Type:       snap.Network.Type,
			IP:         snap.Network.IP,
			Status:     snap.Network.Status,
			Gateway:    snap.Network.Gateway,
			WifiStatus: snap.Network.WifiStatus,
			SSID:       snap.Network.SSID,
		}
	}
}

// Build returns the status document for snap without an event.
func Build(snap Snapshot) StatusJSON {
	inner := buildInner(snap)
	buildDisplay(snap, &inner)
	buildNetwork(snap, &inner)
	return StatusJSON{Status: inner}
}

// FormatJSON returns the JSON status for the web endpoint (no event/reason).
func FormatJSON(snap Snapshot) []byte {
	data, _ := json.MarshalIndent(Build(snap), "", "  ")
	return data
}

// FormatStatusEvent returns the JSON status for an MQTT system event.
func FormatStatusEvent(snap Snapshot, event, reason string) []byte {
	sj := Build(snap)
	sj.Status.Event = event
	sj.Status.Reason = reason

	data, _ := json.Marshal(sj)
	return data
}
