package media

import (
	"testing"
)

const sampleProbeJSON = `{
	"streams": [
		{
			"codec_type": "video",
			"codec_name": "hevc",
			"width": 3840,
			"height": 2160,
			"avg_frame_rate": "30000/1001",
			"bit_rate": "45000000",
			"tags": {"rotate": "90"},
			"side_data_list": [
				{"side_data_type": "Display Matrix", "rotation": -90}
			]
		},
		{
			"codec_type": "audio",
			"codec_name": "aac",
			"channels": 2,
			"sample_rate": "48000"
		}
	],
	"format": {
		"format_name": "mov,mp4,m4a,3gp,3g2,mj2",
		"duration": "12.345",
		"bit_rate": "46000000",
		"tags": {
			"com.apple.quicktime.creationdate": "2024-06-01T10:00:00+0200",
			"com.apple.quicktime.make": "Apple",
			"com.apple.quicktime.model": "iPhone 15 Pro",
			"com.apple.quicktime.location.ISO6709": "+37.3349-122.0090+012.501/",
			"encoder": "Lavf60.3.100"
		}
	}
}`

func TestParseProbeOutput(t *testing.T) {
	res, err := ParseProbeOutput([]byte(sampleProbeJSON))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}

	if res.DurationMs == nil || *res.DurationMs != 12345 {
		t.Errorf("duration: got %v, want 12345", res.DurationMs)
	}
	if res.Width == nil || *res.Width != 3840 || res.Height == nil || *res.Height != 2160 {
		t.Errorf("dimensions: got %v x %v", res.Width, res.Height)
	}
	if res.FPS == nil || *res.FPS < 29.96 || *res.FPS > 29.98 {
		t.Errorf("fps: got %v, want ~29.97", res.FPS)
	}
	if res.VideoCodec == nil || *res.VideoCodec != "hevc" {
		t.Errorf("video codec: got %v", res.VideoCodec)
	}
	if !res.HasAudio || res.AudioChannels == nil || *res.AudioChannels != 2 {
		t.Errorf("audio: has=%v channels=%v", res.HasAudio, res.AudioChannels)
	}
	if res.AudioSampleRate == nil || *res.AudioSampleRate != 48000 {
		t.Errorf("sample rate: got %v", res.AudioSampleRate)
	}
	if res.CreationTime == nil || *res.CreationTime != "2024-06-01T10:00:00+0200" {
		t.Errorf("creation time: got %v", res.CreationTime)
	}
	if res.CameraMake == nil || *res.CameraMake != "Apple" {
		t.Errorf("camera make: got %v", res.CameraMake)
	}
	if res.CameraModel == nil || *res.CameraModel != "iPhone 15 Pro" {
		t.Errorf("camera model: got %v", res.CameraModel)
	}
	if res.GPSLat == nil || *res.GPSLat != 37.3349 || res.GPSLng == nil || *res.GPSLng != -122.009 {
		t.Errorf("gps: got %v, %v", res.GPSLat, res.GPSLng)
	}
	if res.Extra["encoder"] != "Lavf60.3.100" {
		t.Errorf("extra tags: got %v", res.Extra)
	}
}

func TestStreamRotation_DisplayMatrixWins(t *testing.T) {
	res, err := ParseProbeOutput([]byte(sampleProbeJSON))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	// The Display Matrix says -90, which normalizes to 90; the rotate
	// tag must only be a fallback.
	if res.Rotation != 90 {
		t.Errorf("rotation: got %d, want 90", res.Rotation)
	}
}

func TestStreamRotation_RotateTagFallback(t *testing.T) {
	raw := `{"streams":[{"codec_type":"video","codec_name":"h264","tags":{"rotate":"270"}}],"format":{}}`
	res, err := ParseProbeOutput([]byte(raw))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if res.Rotation != 270 {
		t.Errorf("rotation: got %d, want 270", res.Rotation)
	}
}

func TestParseISO6709(t *testing.T) {
	cases := []struct {
		in       string
		lat, lng float64
		ok       bool
	}{
		{"+37.3349-122.0090+012.501/", 37.3349, -122.009, true},
		{"-33.8688+151.2093/", -33.8688, 151.2093, true},
		{"+48+011/", 48, 11, true},
		{"garbage", 0, 0, false},
		{"", 0, 0, false},
	}
	for _, tc := range cases {
		lat, lng, ok := ParseISO6709(tc.in)
		if ok != tc.ok || lat != tc.lat || lng != tc.lng {
			t.Errorf("ParseISO6709(%q) = %v, %v, %v; want %v, %v, %v",
				tc.in, lat, lng, ok, tc.lat, tc.lng, tc.ok)
		}
	}
}

func TestParseFrameRate(t *testing.T) {
	cases := []struct {
		in   string
		want float64
	}{
		{"25/1", 25},
		{"30000/1001", 29.97002997002997},
		{"0/0", 0},
		{"24", 24},
		{"bogus", 0},
	}
	for _, tc := range cases {
		if got := parseFrameRate(tc.in); got != tc.want {
			t.Errorf("parseFrameRate(%q) = %v, want %v", tc.in, got, tc.want)
		}
	}
}

func TestParseProbeOutput_PhotoWithoutStreamsData(t *testing.T) {
	raw := `{"streams":[{"codec_type":"video","codec_name":"mjpeg","width":4032,"height":3024,"avg_frame_rate":"0/0"}],"format":{"format_name":"image2"}}`
	res, err := ParseProbeOutput([]byte(raw))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if res.FPS != nil {
		t.Errorf("still image should have no fps, got %v", *res.FPS)
	}
	if res.DurationMs != nil {
		t.Errorf("still image should have no duration, got %v", *res.DurationMs)
	}
	if res.Width == nil || *res.Width != 4032 {
		t.Errorf("width: got %v", res.Width)
	}
}
