package schema

import (
	"encoding/json"

	"gopkg.in/yaml.v3"
)

type DType string

const (
	DTypeInt      DType = "int"
	DTypeDecimal  DType = "decimal"
	DTypeFloat    DType = "float" // legacy alias of decimal
	DTypeText     DType = "text"
	DTypeBool     DType = "bool"
	DTypeDate     DType = "date"
	DTypeDatetime DType = "datetime"
	DTypeBytes    DType = "bytes"
)

const (
	SCDModeNone = ""
	SCDMode1    = "scd1"
	SCDMode2    = "scd2"
)

const (
	DefaultSeed        int64 = 12345
	DefaultMinChildren       = 1
	DefaultMaxChildren       = 3
)

// Row is one generated record keyed by column name.
type Row map[string]any

// Clone returns a shallow copy; values are immutable scalars or byte slices.
func (r Row) Clone() Row {
	out := make(Row, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

type Column struct {
	Name       string         `json:"name" yaml:"name"`
	DType      DType          `json:"dtype" yaml:"dtype"`
	Nullable   bool           `json:"nullable" yaml:"nullable"`
	PrimaryKey bool           `json:"primary_key,omitempty" yaml:"primary_key,omitempty"`
	Unique     bool           `json:"unique,omitempty" yaml:"unique,omitempty"`
	MinValue   *float64       `json:"min_value,omitempty" yaml:"min_value,omitempty"`
	MaxValue   *float64       `json:"max_value,omitempty" yaml:"max_value,omitempty"`
	Choices    []any          `json:"choices,omitempty" yaml:"choices,omitempty"`
	Pattern    string         `json:"pattern,omitempty" yaml:"pattern,omitempty"`
	Generator  string         `json:"generator,omitempty" yaml:"generator,omitempty"`
	Params     map[string]any `json:"params,omitempty" yaml:"params,omitempty"`
	DependsOn  []string       `json:"depends_on,omitempty" yaml:"depends_on,omitempty"`
}

// UnmarshalJSON applies the nullable=true default before decoding.
func (c *Column) UnmarshalJSON(data []byte) error {
	type plain Column
	p := plain{Nullable: true}
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	*c = Column(p)
	return nil
}

func (c *Column) UnmarshalYAML(node *yaml.Node) error {
	type plain Column
	p := plain{Nullable: true}
	if err := node.Decode(&p); err != nil {
		return err
	}
	*c = Column(p)
	return nil
}

// BaseDType folds the legacy float alias into decimal.
func (c Column) BaseDType() DType {
	if c.DType == DTypeFloat {
		return DTypeDecimal
	}
	return c.DType
}

func (c Column) IsNumeric() bool {
	d := c.BaseDType()
	return d == DTypeInt || d == DTypeDecimal
}

func (c Column) IsTemporal() bool {
	return c.DType == DTypeDate || c.DType == DTypeDatetime
}

type Table struct {
	Name                       string   `json:"table_name" yaml:"table_name"`
	Columns                    []Column `json:"columns" yaml:"columns"`
	RowCount                   int      `json:"row_count" yaml:"row_count"`
	BusinessKey                []string `json:"business_key,omitempty" yaml:"business_key,omitempty"`
	BusinessKeyUniqueCount     *int     `json:"business_key_unique_count,omitempty" yaml:"business_key_unique_count,omitempty"`
	BusinessKeyStaticColumns   []string `json:"business_key_static_columns,omitempty" yaml:"business_key_static_columns,omitempty"`
	BusinessKeyChangingColumns []string `json:"business_key_changing_columns,omitempty" yaml:"business_key_changing_columns,omitempty"`
	SCDMode                    string   `json:"scd_mode,omitempty" yaml:"scd_mode,omitempty"`
	SCDTrackedColumns          []string `json:"scd_tracked_columns,omitempty" yaml:"scd_tracked_columns,omitempty"`
	SCDActiveFromColumn        string   `json:"scd_active_from_column,omitempty" yaml:"scd_active_from_column,omitempty"`
	SCDActiveToColumn          string   `json:"scd_active_to_column,omitempty" yaml:"scd_active_to_column,omitempty"`
}

func (t *Table) Column(name string) (*Column, bool) {
	for i := range t.Columns {
		if t.Columns[i].Name == name {
			return &t.Columns[i], true
		}
	}
	return nil, false
}

// PrimaryKey returns the first primary key column.
func (t *Table) PrimaryKey() (*Column, bool) {
	for i := range t.Columns {
		if t.Columns[i].PrimaryKey {
			return &t.Columns[i], true
		}
	}
	return nil, false
}

func (t *Table) ColumnNames() []string {
	names := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		names[i] = c.Name
	}
	return names
}

// VersionColumns are the columns whose values change between SCD versions.
// Tracked columns win; changing columns are the fallback.
func (t *Table) VersionColumns() []string {
	if len(t.SCDTrackedColumns) > 0 {
		return t.SCDTrackedColumns
	}
	return t.BusinessKeyChangingColumns
}

type ForeignKey struct {
	ChildTable   string `json:"child_table" yaml:"child_table"`
	ChildColumn  string `json:"child_column" yaml:"child_column"`
	ParentTable  string `json:"parent_table" yaml:"parent_table"`
	ParentColumn string `json:"parent_column" yaml:"parent_column"`
	MinChildren  int    `json:"min_children" yaml:"min_children"`
	MaxChildren  int    `json:"max_children" yaml:"max_children"`
}

func (f *ForeignKey) UnmarshalJSON(data []byte) error {
	type plain ForeignKey
	p := plain{MinChildren: DefaultMinChildren, MaxChildren: DefaultMaxChildren}
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	*f = ForeignKey(p)
	return nil
}

func (f *ForeignKey) UnmarshalYAML(node *yaml.Node) error {
	type plain ForeignKey
	p := plain{MinChildren: DefaultMinChildren, MaxChildren: DefaultMaxChildren}
	if err := node.Decode(&p); err != nil {
		return err
	}
	*f = ForeignKey(p)
	return nil
}

func (f ForeignKey) String() string {
	return f.ChildTable + "." + f.ChildColumn + " -> " + f.ParentTable + "." + f.ParentColumn
}

type Project struct {
	Name        string       `json:"name" yaml:"name"`
	Seed        int64        `json:"seed" yaml:"seed"`
	Tables      []Table      `json:"tables" yaml:"tables"`
	ForeignKeys []ForeignKey `json:"foreign_keys" yaml:"foreign_keys"`
}

func (p *Project) UnmarshalJSON(data []byte) error {
	type plain Project
	q := plain{Seed: DefaultSeed}
	if err := json.Unmarshal(data, &q); err != nil {
		return err
	}
	*p = Project(q)
	return nil
}

func (p *Project) UnmarshalYAML(node *yaml.Node) error {
	type plain Project
	q := plain{Seed: DefaultSeed}
	if err := node.Decode(&q); err != nil {
		return err
	}
	*p = Project(q)
	return nil
}

func (p *Project) Table(name string) (*Table, bool) {
	for i := range p.Tables {
		if p.Tables[i].Name == name {
			return &p.Tables[i], true
		}
	}
	return nil, false
}

func (p *Project) TableNames() []string {
	names := make([]string, len(p.Tables))
	for i, t := range p.Tables {
		names[i] = t.Name
	}
	return names
}

// IncomingFKs returns the foreign keys whose child is the given table,
// ordered by child column so passes are deterministic.
func (p *Project) IncomingFKs(table string) []ForeignKey {
	var out []ForeignKey
	for _, fk := range p.ForeignKeys {
		if fk.ChildTable == table {
			out = append(out, fk)
		}
	}
	sortFKs(out)
	return out
}

// Clone deep-copies the structural parts that generation may rewrite
// (row counts). Column params are shared.
func (p *Project) Clone() *Project {
	out := *p
	out.Tables = make([]Table, len(p.Tables))
	for i, t := range p.Tables {
		t.Columns = append([]Column(nil), t.Columns...)
		out.Tables[i] = t
	}
	out.ForeignKeys = append([]ForeignKey(nil), p.ForeignKeys...)
	return &out
}
