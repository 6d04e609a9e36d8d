package classifier

import (
	"context"
	"fmt"
	"os"
	"slices"

	"gopkg.in/yaml.v3"

	"healthbridge/internal/domain"
)

const (
	KindLinear = "linear"
	KindTree   = "tree"
)

// Artifact is the on-disk form of an exported model. JSON artifacts are read
// through the same YAML decoder.
type Artifact struct {
	Name    string   `yaml:"name"`
	Kind    string   `yaml:"kind"`
	Columns []string `yaml:"columns"`

	// linear
	Classes    []string                      `yaml:"classes"`
	Intercepts map[string]float64            `yaml:"intercepts"`
	Weights    map[string]map[string]float64 `yaml:"weights"`

	// tree
	Tree *Node `yaml:"tree"`
}

// Node is a decision tree node. A node with Label is a leaf. Otherwise it
// splits on Column: numeric values <= Threshold go left, category values
// equal to Equals go left, everything else goes right. Missing values follow
// Missing ("left" or "right", default right).
type Node struct {
	Column    string   `yaml:"column,omitempty"`
	Threshold *float64 `yaml:"threshold,omitempty"`
	Equals    *string  `yaml:"equals,omitempty"`
	Missing   string   `yaml:"missing,omitempty"`
	Left      *Node    `yaml:"left,omitempty"`
	Right     *Node    `yaml:"right,omitempty"`
	Label     *string  `yaml:"label,omitempty"`
}

// LoadArtifact reads and validates an artifact file.
func LoadArtifact(path string) (Model, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParseArtifact(data)
}

// ParseArtifact decodes and validates artifact bytes.
func ParseArtifact(data []byte) (Model, error) {
	var a Artifact
	if err := yaml.Unmarshal(data, &a); err != nil {
		return nil, fmt.Errorf("invalid model artifact: %w", err)
	}
	if err := a.Validate(); err != nil {
		return nil, err
	}
	switch a.Kind {
	case KindLinear:
		return linearModel{a: a}, nil
	default:
		return treeModel{a: a}, nil
	}
}

func (a Artifact) Validate() error {
	if len(a.Columns) == 0 {
		return fmt.Errorf("artifact columns are required")
	}
	seen := map[string]bool{}
	for _, c := range a.Columns {
		if c == "" || seen[c] {
			return fmt.Errorf("artifact column %q is empty or duplicated", c)
		}
		seen[c] = true
	}
	switch a.Kind {
	case KindLinear:
		if len(a.Classes) == 0 {
			return fmt.Errorf("linear artifact needs classes")
		}
		for cls := range a.Weights {
			if !slices.Contains(a.Classes, cls) {
				return fmt.Errorf("weights reference unknown class %s", cls)
			}
		}
		for cls := range a.Intercepts {
			if !slices.Contains(a.Classes, cls) {
				return fmt.Errorf("intercepts reference unknown class %s", cls)
			}
		}
		return nil
	case KindTree:
		if a.Tree == nil {
			return fmt.Errorf("tree artifact needs a tree")
		}
		return a.Tree.validate(seen)
	}
	return fmt.Errorf("unknown artifact kind %q", a.Kind)
}

func (n *Node) validate(columns map[string]bool) error {
	if n.Label != nil {
		if n.Left != nil || n.Right != nil {
			return fmt.Errorf("leaf %s has children", *n.Label)
		}
		return nil
	}
	if !columns[n.Column] {
		return fmt.Errorf("tree splits on unknown column %q", n.Column)
	}
	if (n.Threshold == nil) == (n.Equals == nil) {
		return fmt.Errorf("node on %s needs exactly one of threshold or equals", n.Column)
	}
	if n.Missing != "" && n.Missing != "left" && n.Missing != "right" {
		return fmt.Errorf("node on %s has invalid missing direction %q", n.Column, n.Missing)
	}
	if n.Left == nil || n.Right == nil {
		return fmt.Errorf("node on %s needs left and right", n.Column)
	}
	if err := n.Left.validate(columns); err != nil {
		return err
	}
	return n.Right.validate(columns)
}

func checkColumns(want, got []string) error {
	if !slices.Equal(want, got) {
		return fmt.Errorf("feature columns %v do not match model columns %v", got, want)
	}
	return nil
}

func predictRows(ctx context.Context, want, columns []string, rows [][]domain.Value, one func([]domain.Value) (string, error)) ([]string, error) {
	if err := checkColumns(want, columns); err != nil {
		return nil, err
	}
	out := make([]string, 0, len(rows))
	for i, row := range rows {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if len(row) != len(columns) {
			return nil, fmt.Errorf("row %d has %d values, want %d", i, len(row), len(columns))
		}
		label, err := one(row)
		if err != nil {
			return nil, err
		}
		out = append(out, label)
	}
	return out, nil
}

type linearModel struct {
	a Artifact
}

func (m linearModel) Predict(ctx context.Context, columns []string, rows [][]domain.Value) ([]string, error) {
	return predictRows(ctx, m.a.Columns, columns, rows, m.score)
}

// score returns the class with the highest linear score; ties go to the
// class listed first.
func (m linearModel) score(row []domain.Value) (string, error) {
	best, bestScore := "", 0.0
	for i, cls := range m.a.Classes {
		s := m.a.Intercepts[cls]
		w := m.a.Weights[cls]
		for j, col := range m.a.Columns {
			v := row[j]
			if n, ok := v.Number(); ok {
				s += w[col] * n
			} else if v.Kind == domain.KindCategory {
				s += w[col+"="+v.Category]
			}
		}
		if i == 0 || s > bestScore {
			best, bestScore = cls, s
		}
	}
	return best, nil
}

type treeModel struct {
	a Artifact
}

func (m treeModel) Predict(ctx context.Context, columns []string, rows [][]domain.Value) ([]string, error) {
	index := make(map[string]int, len(m.a.Columns))
	for i, c := range m.a.Columns {
		index[c] = i
	}
	return predictRows(ctx, m.a.Columns, columns, rows, func(row []domain.Value) (string, error) {
		n := m.a.Tree
		for n.Label == nil {
			v := row[index[n.Column]]
			if goLeft(n, v) {
				n = n.Left
			} else {
				n = n.Right
			}
		}
		return *n.Label, nil
	})
}

func goLeft(n *Node, v domain.Value) bool {
	if v.IsNull() {
		return n.Missing == "left"
	}
	if n.Threshold != nil {
		x, ok := v.Number()
		if !ok {
			return n.Missing == "left"
		}
		return x <= *n.Threshold
	}
	return v.String() == *n.Equals
}
