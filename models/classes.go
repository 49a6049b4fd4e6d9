package models

import (
	"strconv"

	"github.com/pkg/errors"
)

// ClassSetName identifies a built-in label list.
type ClassSetName string

const (
	// ClassSetYOLO is the 80 COCO classes, zero-based, no background.
	ClassSetYOLO ClassSetName = "yolo"
	// ClassSetCOCO is the 80 COCO classes plus "__background__" at index 0.
	ClassSetCOCO ClassSetName = "coco"
	// ClassSetVOC is the 20 Pascal VOC classes plus "__background__" at index 0.
	ClassSetVOC ClassSetName = "voc"
)

// ClassSet ties a name to its full, ordered list of labels.
type ClassSet struct {
	// Class set identifier.
	Name ClassSetName
	// Labels indexed by the class id the model emits.
	Classes []string
}

// Label returns the class name for the given index, or the index itself when
// it is out of range.
func (s ClassSet) Label(idx int) string {
	if idx >= 0 && idx < len(s.Classes) {
		return s.Classes[idx]
	}
	return strconv.Itoa(idx)
}

// Index returns the class index for a given name.
func (s ClassSet) Index(name string) (int, error) {
	for i, c := range s.Classes {
		if c == name {
			return i, nil
		}
	}
	return -1, errors.Errorf("name %q not found in class set %q", name, s.Name)
}

// COCOClasses is the full 80 COCO classes plus "__background__" at index 0.
var COCOClasses = ClassSet{
	Name: ClassSetCOCO,
	Classes: []string{
		"__background__", "person", "bicycle", "car", "motorcycle", "airplane", "bus", "train",
		"truck", "boat", "traffic light", "fire hydrant", "stop sign", "parking meter",
		"bench", "bird", "cat", "dog", "horse", "sheep", "cow", "elephant", "bear", "zebra",
		"giraffe", "backpack", "umbrella", "handbag", "tie", "suitcase", "frisbee", "skis",
		"snowboard", "sports ball", "kite", "baseball bat", "baseball glove", "skateboard",
		"surfboard", "tennis racket", "bottle", "wine glass", "cup", "fork", "knife", "spoon",
		"bowl", "banana", "apple", "sandwich", "orange", "broccoli", "carrot", "hot dog",
		"pizza", "donut", "cake", "chair", "couch", "potted plant", "bed", "dining table",
		"toilet", "tv", "laptop", "mouse", "remote", "keyboard", "cell phone", "microwave",
		"oven", "toaster", "sink", "refrigerator", "book", "clock", "vase", "scissors",
		"teddy bear", "hair drier", "toothbrush",
	},
}

// YOLOClasses is the 80 COCO classes (no background).
// YOLO models index directly into this zero-based list.
var YOLOClasses = ClassSet{
	Name:    ClassSetYOLO,
	Classes: COCOClasses.Classes[1:],
}

// PascalVOCClasses is the 20 Pascal VOC classes + "__background__" at index 0.
var PascalVOCClasses = ClassSet{
	Name: ClassSetVOC,
	Classes: []string{
		"__background__", "aeroplane", "bicycle", "bird", "boat", "bottle", "bus", "car",
		"cat", "chair", "cow", "diningtable", "dog", "horse", "motorbike", "person",
		"pottedplant", "sheep", "sofa", "train", "tvmonitor",
	},
}

// LookupClassSet returns the built-in class set with the given name.
func LookupClassSet(name ClassSetName) (ClassSet, bool) {
	for _, set := range []ClassSet{YOLOClasses, COCOClasses, PascalVOCClasses} {
		if set.Name == name {
			return set, true
		}
	}
	return ClassSet{}, false
}
