package media

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"os/exec"
	"regexp"
	"strconv"
	"strings"
)

// ProbeResult is the technical metadata of one file as reported by
// ffprobe, flattened to what the catalog stores.
type ProbeResult struct {
	DurationMs      *int64
	Width           *int
	Height          *int
	FPS             *float64
	VideoCodec      *string
	VideoBitrate    *int64
	AudioCodec      *string
	AudioChannels   *int
	AudioSampleRate *int
	ContainerFormat *string
	Rotation        int
	CreationTime    *string
	CameraMake      *string
	CameraModel     *string
	GPSLat          *float64
	GPSLng          *float64
	HasAudio        bool
	Extra           map[string]string
}

type probeOutput struct {
	Streams []probeStream `json:"streams"`
	Format  probeFormat   `json:"format"`
}

type probeStream struct {
	CodecType    string            `json:"codec_type"`
	CodecName    string            `json:"codec_name"`
	Width        int               `json:"width"`
	Height       int               `json:"height"`
	AvgFrameRate string            `json:"avg_frame_rate"`
	BitRate      string            `json:"bit_rate"`
	Channels     int               `json:"channels"`
	SampleRate   string            `json:"sample_rate"`
	Tags         map[string]string `json:"tags"`
	SideDataList []struct {
		SideDataType string  `json:"side_data_type"`
		Rotation     float64 `json:"rotation"`
	} `json:"side_data_list"`
}

type probeFormat struct {
	FormatName string            `json:"format_name"`
	Duration   string            `json:"duration"`
	BitRate    string            `json:"bit_rate"`
	Tags       map[string]string `json:"tags"`
}

// iso6709 matches coordinate strings like "+37.3349-122.0090/".
var iso6709 = regexp.MustCompile(`([+-]\d+\.?\d*)([+-]\d+\.?\d*)`)

// Tag keys checked in order for each logical field. QuickTime files use
// the com.apple.* names; most others use the short forms.
var (
	creationTimeKeys = []string{"creation_time", "com.apple.quicktime.creationdate", "date"}
	makeKeys         = []string{"make", "com.apple.quicktime.make", "manufacturer"}
	modelKeys        = []string{"model", "com.apple.quicktime.model"}
	locationKeys     = []string{"location", "com.apple.quicktime.location.ISO6709", "location-eng"}
	extraKeys        = []string{"title", "encoder", "handler_name", "copyright", "description", "artist", "album"}
)

// Probe runs ffprobe against a file and parses its JSON output.
func Probe(ctx context.Context, path string) (*ProbeResult, error) {
	cmd := exec.CommandContext(ctx, "ffprobe",
		"-v", "quiet",
		"-print_format", "json",
		"-show_format",
		"-show_streams",
		path)
	out, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("running ffprobe: %w", err)
	}
	return ParseProbeOutput(out)
}

// ParseProbeOutput parses raw ffprobe JSON. Split out from Probe so the
// mapping is testable without ffprobe installed.
func ParseProbeOutput(raw []byte) (*ProbeResult, error) {
	var out probeOutput
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("parsing ffprobe output: %w", err)
	}

	res := &ProbeResult{Extra: map[string]string{}}

	if out.Format.FormatName != "" {
		format := out.Format.FormatName
		res.ContainerFormat = &format
	}
	if seconds, err := strconv.ParseFloat(out.Format.Duration, 64); err == nil {
		ms := int64(seconds * 1000)
		res.DurationMs = &ms
	}

	for i := range out.Streams {
		stream := &out.Streams[i]
		switch stream.CodecType {
		case "video":
			if res.VideoCodec != nil {
				continue // first video stream wins
			}
			codec := stream.CodecName
			res.VideoCodec = &codec
			if stream.Width > 0 && stream.Height > 0 {
				w, h := stream.Width, stream.Height
				res.Width = &w
				res.Height = &h
			}
			if fps := parseFrameRate(stream.AvgFrameRate); fps > 0 {
				res.FPS = &fps
			}
			if rate, err := strconv.ParseInt(stream.BitRate, 10, 64); err == nil {
				res.VideoBitrate = &rate
			}
			res.Rotation = streamRotation(stream)
		case "audio":
			if res.AudioCodec != nil {
				continue
			}
			codec := stream.CodecName
			res.AudioCodec = &codec
			res.HasAudio = true
			if stream.Channels > 0 {
				ch := stream.Channels
				res.AudioChannels = &ch
			}
			if rate, err := strconv.Atoi(stream.SampleRate); err == nil {
				res.AudioSampleRate = &rate
			}
		}
	}

	// Fall back on the format bitrate when the stream carries none.
	if res.VideoBitrate == nil && res.VideoCodec != nil {
		if rate, err := strconv.ParseInt(out.Format.BitRate, 10, 64); err == nil {
			res.VideoBitrate = &rate
		}
	}

	applyTags(res, out.Format.Tags)
	for i := range out.Streams {
		applyTags(res, out.Streams[i].Tags)
	}
	return res, nil
}

// streamRotation extracts rotation from the Display Matrix side data or
// the legacy rotate tag, normalized to [0, 360).
func streamRotation(stream *probeStream) int {
	for _, sd := range stream.SideDataList {
		if strings.EqualFold(sd.SideDataType, "Display Matrix") {
			deg := int(math.Abs(sd.Rotation)) % 360
			return deg
		}
	}
	if rotate, ok := stream.Tags["rotate"]; ok {
		if deg, err := strconv.Atoi(rotate); err == nil {
			deg = deg % 360
			if deg < 0 {
				deg += 360
			}
			return deg
		}
	}
	return 0
}

func applyTags(res *ProbeResult, tags map[string]string) {
	if len(tags) == 0 {
		return
	}
	lower := make(map[string]string, len(tags))
	for key, value := range tags {
		lower[strings.ToLower(key)] = value
	}

	if res.CreationTime == nil {
		if value := firstTag(lower, creationTimeKeys); value != "" {
			res.CreationTime = &value
		}
	}
	if res.CameraMake == nil {
		if value := firstTag(lower, makeKeys); value != "" {
			res.CameraMake = &value
		}
	}
	if res.CameraModel == nil {
		if value := firstTag(lower, modelKeys); value != "" {
			res.CameraModel = &value
		}
	}
	if res.GPSLat == nil {
		if value := firstTag(lower, locationKeys); value != "" {
			if lat, lng, ok := ParseISO6709(value); ok {
				res.GPSLat = &lat
				res.GPSLng = &lng
			}
		}
	}
	for _, key := range extraKeys {
		if value, ok := lower[key]; ok && value != "" {
			if _, seen := res.Extra[key]; !seen {
				res.Extra[key] = value
			}
		}
	}
}

func firstTag(tags map[string]string, keys []string) string {
	for _, key := range keys {
		if value, ok := tags[strings.ToLower(key)]; ok && strings.TrimSpace(value) != "" {
			return strings.TrimSpace(value)
		}
	}
	return ""
}

// ParseISO6709 extracts latitude and longitude from an ISO 6709 string
// like "+37.3349-122.0090+012.501/".
func ParseISO6709(value string) (lat, lng float64, ok bool) {
	match := iso6709.FindStringSubmatch(value)
	if match == nil {
		return 0, 0, false
	}
	lat, err := strconv.ParseFloat(match[1], 64)
	if err != nil {
		return 0, 0, false
	}
	lng, err = strconv.ParseFloat(match[2], 64)
	if err != nil {
		return 0, 0, false
	}
	return lat, lng, true
}

// parseFrameRate turns an ffprobe fraction like "30000/1001" into
// frames per second.
func parseFrameRate(value string) float64 {
	num, den, found := strings.Cut(value, "/")
	if !found {
		fps, _ := strconv.ParseFloat(value, 64)
		return fps
	}
	n, err1 := strconv.ParseFloat(num, 64)
	d, err2 := strconv.ParseFloat(den, 64)
	if err1 != nil || err2 != nil || d == 0 {
		return 0
	}
	return n / d
}
