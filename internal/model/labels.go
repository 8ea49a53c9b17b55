package model

import (
	"bufio"
	"fmt"
	"os"
	"strings"
)

// DefaultLabels is the class order the produce model was trained with.
// Index i of every score vector belongs to DefaultLabels[i].
var DefaultLabels = []string{
	"apple",
	"banana",
	"beetroot",
	"bell pepper",
	"cabbage",
	"capsicum",
	"carrot",
	"cauliflower",
	"chilli pepper",
	"corn",
	"cucumber",
	"eggplant",
	"garlic",
	"ginger",
	"grapes",
	"jalepeno",
	"kiwi",
	"lemon",
	"lettuce",
	"mango",
	"onion",
	"orange",
	"paprika",
	"pear",
	"peas",
	"pineapple",
	"pomegranate",
	"potato",
	"raddish",
	"soy beans",
	"spinach",
	"sweetcorn",
	"sweetpotato",
	"tomato",
	"turnip",
	"watermelon",
}

// LoadLabelFile reads a text file with one class name per line.
// Blank lines are skipped.
func LoadLabelFile(filename string) ([]string, error) {
	f, err := os.Open(filename)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	labels := []string{}
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line != "" {
			labels = append(labels, line)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return labels, ValidateLabels(labels)
}

// ValidateLabels checks that labels is a usable index-to-name mapping.
func ValidateLabels(labels []string) error {
	if len(labels) == 0 {
		return fmt.Errorf("label set is empty")
	}
	seen := make(map[string]int, len(labels))
	for i, l := range labels {
		if strings.TrimSpace(l) == "" {
			return fmt.Errorf("label %d is blank", i)
		}
		if j, ok := seen[l]; ok {
			return fmt.Errorf("label %q appears at index %d and %d", l, j, i)
		}
		seen[l] = i
	}
	return nil
}
