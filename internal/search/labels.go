// Package search plans and executes multi-modal queries: full-text
// transcript search, per-item vector shard similarity, object-detection
// lookups, color filtering and person-window joins, fused into one
// ranked result set.
package search

import (
	"sort"
	"strings"
)

// objectLabels is the closed label set the object detector emits.
var objectLabels = map[string]struct{}{
	"person": {}, "bicycle": {}, "car": {}, "motorcycle": {}, "airplane": {},
	"bus": {}, "train": {}, "truck": {}, "boat": {}, "traffic light": {},
	"fire hydrant": {}, "stop sign": {}, "parking meter": {}, "bench": {},
	"bird": {}, "cat": {}, "dog": {}, "horse": {}, "sheep": {}, "cow": {},
	"elephant": {}, "bear": {}, "zebra": {}, "giraffe": {}, "backpack": {},
	"umbrella": {}, "handbag": {}, "tie": {}, "suitcase": {}, "frisbee": {},
	"skis": {}, "snowboard": {}, "sports ball": {}, "kite": {},
	"baseball bat": {}, "baseball glove": {}, "skateboard": {},
	"surfboard": {}, "tennis racket": {}, "bottle": {}, "wine glass": {},
	"cup": {}, "fork": {}, "knife": {}, "spoon": {}, "bowl": {},
	"banana": {}, "apple": {}, "sandwich": {}, "orange": {}, "broccoli": {},
	"carrot": {}, "hot dog": {}, "pizza": {}, "donut": {}, "cake": {},
	"chair": {}, "couch": {}, "potted plant": {}, "bed": {},
	"dining table": {}, "toilet": {}, "tv": {}, "laptop": {}, "mouse": {},
	"remote": {}, "keyboard": {}, "cell phone": {}, "microwave": {},
	"oven": {}, "toaster": {}, "sink": {}, "refrigerator": {}, "book": {},
	"clock": {}, "vase": {}, "scissors": {}, "teddy bear": {},
	"hair drier": {}, "toothbrush": {},
}

// labelAliases maps common query words to canonical labels. An empty
// value marks a word that looks like an object but is too generic to
// pick a single label for.
var labelAliases = map[string]string{
	"cars": "car", "auto": "car", "automobile": "car",
	"vehicle": "car", "vehicles": "car",
	"bike": "bicycle", "bikes": "bicycle", "cycle": "bicycle",
	"motorbike": "motorcycle",
	"plane": "airplane", "planes": "airplane",
	"people": "person", "human": "person", "humans": "person",
	"man": "person", "woman": "person", "men": "person", "women": "person",
	"child": "person", "children": "person", "kid": "person", "kids": "person",
	"puppy": "dog", "puppies": "dog", "dogs": "dog",
	"kitten": "cat", "kittens": "cat", "cats": "cat",
	"phone": "cell phone", "cellphone": "cell phone", "mobile": "cell phone",
	"television": "tv", "monitor": "tv", "screen": "tv",
	"sofa": "couch", "settee": "couch",
	"computer": "laptop", "notebook": "laptop",
	"food": "",
}

// ObjectLabels returns the canonical detection label set, sorted.
func ObjectLabels() []string {
	out := make([]string, 0, len(objectLabels))
	for label := range objectLabels {
		out = append(out, label)
	}
	sort.Strings(out)
	return out
}

// ObjectCategory classifies a free-text query into a canonical object
// label, or "" when the query names no known object. The whole query is
// tried first so multi-word labels like "cell phone" match, then each
// word individually.
func ObjectCategory(query string) string {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return ""
	}
	if _, ok := objectLabels[q]; ok {
		return q
	}
	if alias, ok := labelAliases[q]; ok {
		return alias
	}
	for _, word := range strings.Fields(q) {
		if _, ok := objectLabels[word]; ok {
			return word
		}
		if alias, ok := labelAliases[word]; ok && alias != "" {
			return alias
		}
	}
	return ""
}
