package schema

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/Lumos-Labs-HQ/flashseed/internal/apperrors"
)

// validIdentifier guards table and column names; they end up in DDL.
var validIdentifier = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

var supportedDTypes = map[DType]bool{
	DTypeInt: true, DTypeDecimal: true, DTypeFloat: true, DTypeText: true,
	DTypeBool: true, DTypeDate: true, DTypeDatetime: true, DTypeBytes: true,
}

var semanticDTypes = map[string]bool{
	"latitude": true, "longitude": true, "money": true, "percent": true,
}

func tableLoc(table string) string {
	return fmt.Sprintf("Table '%s'", table)
}

func columnLoc(table, column string) string {
	return fmt.Sprintf("Table '%s', column '%s'", table, column)
}

func fkLoc(fk ForeignKey) string {
	return fmt.Sprintf("Foreign key %s", fk)
}

// Validate performs the structural checks on a project. Generator-specific
// parameter checks live with the generators.
func Validate(p *Project) error {
	if strings.TrimSpace(p.Name) == "" {
		return apperrors.Validation("Project", "name is empty", "set a non-empty project name")
	}
	if len(p.Tables) == 0 {
		return apperrors.Validation("Project", "no tables defined", "add at least one table")
	}

	seen := make(map[string]bool, len(p.Tables))
	for i := range p.Tables {
		t := &p.Tables[i]
		if !validIdentifier.MatchString(t.Name) {
			return apperrors.Validationf(tableLoc(t.Name), "use letters, digits and underscores only", "invalid table name")
		}
		if seen[t.Name] {
			return apperrors.Validation(tableLoc(t.Name), "duplicate table name", "rename one of the tables")
		}
		seen[t.Name] = true
		if err := validateTable(t); err != nil {
			return err
		}
	}

	if err := validateForeignKeys(p); err != nil {
		return err
	}

	for i := range p.Tables {
		if err := validateBusinessKey(p, &p.Tables[i]); err != nil {
			return err
		}
	}
	return nil
}

func validateTable(t *Table) error {
	loc := tableLoc(t.Name)
	if len(t.Columns) == 0 {
		return apperrors.Validation(loc, "no columns defined", "add at least one column")
	}
	if t.RowCount < 0 {
		return apperrors.Validationf(loc, "use 0 to auto-size a child table or a positive count", "row_count %d is negative", t.RowCount)
	}

	names := make(map[string]bool, len(t.Columns))
	pks := 0
	for i := range t.Columns {
		c := &t.Columns[i]
		if !validIdentifier.MatchString(c.Name) {
			return apperrors.Validation(columnLoc(t.Name, c.Name), "invalid column name", "use letters, digits and underscores only")
		}
		if names[c.Name] {
			return apperrors.Validation(columnLoc(t.Name, c.Name), "duplicate column name", "rename one of the columns")
		}
		names[c.Name] = true
		if c.PrimaryKey {
			pks++
		}
	}
	if pks == 0 {
		return apperrors.Validation(loc, "no primary key column", "mark exactly one int column as primary_key")
	}
	if pks > 1 {
		return apperrors.Validation(loc, "more than one primary key column", "mark exactly one integer column as primary_key")
	}

	for i := range t.Columns {
		if err := validateColumn(t, &t.Columns[i], names); err != nil {
			return err
		}
	}
	return nil
}

func validateColumn(t *Table, c *Column, names map[string]bool) error {
	loc := columnLoc(t.Name, c.Name)

	if !supportedDTypes[c.DType] {
		if semanticDTypes[string(c.DType)] {
			return apperrors.Validationf(loc,
				fmt.Sprintf("use dtype 'decimal' with generator '%s'", c.DType),
				"dtype '%s' is a semantic type, not a storage type", c.DType)
		}
		return apperrors.Validationf(loc,
			"use one of int, decimal, text, bool, date, datetime, bytes",
			"unsupported dtype '%s'", c.DType)
	}

	if c.PrimaryKey {
		if c.DType != DTypeInt {
			return apperrors.Validation(loc, "primary key must be int", "set dtype to 'int' for the primary key column")
		}
	}

	if c.Choices != nil && len(c.Choices) == 0 {
		return apperrors.Validation(loc, "choices is empty", "provide at least one choice or remove the field")
	}
	if c.DType == DTypeBytes && len(c.Choices) > 0 {
		return apperrors.Validation(loc, "dtype 'bytes' does not support choices", "remove choices or change the dtype")
	}

	if c.MinValue != nil && c.MaxValue != nil && *c.MinValue > *c.MaxValue {
		return apperrors.Validationf(loc, "make min_value less than or equal to max_value",
			"min_value %v is greater than max_value %v", *c.MinValue, *c.MaxValue)
	}

	if c.Pattern != "" {
		if _, err := regexp.Compile(c.Pattern); err != nil {
			return apperrors.Validationf(loc, "provide a valid regular expression", "pattern does not compile: %v", err)
		}
	}

	for _, dep := range c.DependsOn {
		if dep == c.Name {
			return apperrors.Validation(loc, "column depends on itself", "remove the column from its own depends_on")
		}
		if !names[dep] {
			return apperrors.Validationf(loc, "reference an existing column in depends_on",
				"depends_on references unknown column '%s'", dep)
		}
	}
	return nil
}

func validateForeignKeys(p *Project) error {
	pairs := make(map[string]bool)
	for _, fk := range p.ForeignKeys {
		loc := fkLoc(fk)
		child, ok := p.Table(fk.ChildTable)
		if !ok {
			return apperrors.Validationf(loc, "reference an existing child table", "child table '%s' not found", fk.ChildTable)
		}
		parent, ok := p.Table(fk.ParentTable)
		if !ok {
			return apperrors.Validationf(loc, "reference an existing parent table", "parent table '%s' not found", fk.ParentTable)
		}
		childCol, ok := child.Column(fk.ChildColumn)
		if !ok {
			return apperrors.Validationf(loc, "reference an existing child column", "child column '%s' not found", fk.ChildColumn)
		}
		parentCol, ok := parent.Column(fk.ParentColumn)
		if !ok {
			return apperrors.Validationf(loc, "reference an existing parent column", "parent column '%s' not found", fk.ParentColumn)
		}
		if !parentCol.PrimaryKey {
			return apperrors.Validation(loc, "parent column is not a primary key", "point the foreign key at the parent's primary key")
		}
		if childCol.DType != DTypeInt {
			return apperrors.Validation(loc, "child column must be int", "set the child column dtype to 'int'")
		}
		if childCol.PrimaryKey {
			return apperrors.Validation(loc, "child column is the primary key", "use a separate int column for the foreign key")
		}
		if childCol.Unique && fk.MaxChildren > 1 {
			return apperrors.Validation(loc, "unique child column allows more than one child per parent", "set max_children to 1 or drop unique")
		}
		if fk.MinChildren <= 0 || fk.MaxChildren <= 0 {
			return apperrors.Validation(loc, "min_children and max_children must be positive", "set both bounds to values of at least 1")
		}
		if fk.MinChildren > fk.MaxChildren {
			return apperrors.Validationf(loc, "make min_children less than or equal to max_children",
				"min_children %d is greater than max_children %d", fk.MinChildren, fk.MaxChildren)
		}
		key := fk.ChildTable + "." + fk.ChildColumn
		if pairs[key] {
			return apperrors.Validation(loc, "child column is used by more than one foreign key", "give each foreign key its own child column")
		}
		pairs[key] = true
	}
	return nil
}

func validateBusinessKey(p *Project, t *Table) error {
	loc := tableLoc(t.Name)

	fkCols := make(map[string]bool)
	for _, fk := range p.IncomingFKs(t.Name) {
		fkCols[fk.ChildColumn] = true
	}

	for _, name := range t.BusinessKey {
		c, ok := t.Column(name)
		if !ok {
			return apperrors.Validationf(loc, "list existing columns in business_key", "business_key column '%s' not found", name)
		}
		cloc := columnLoc(t.Name, name)
		if c.Nullable {
			return apperrors.Validation(cloc, "business key column is nullable", "set nullable to false")
		}
		if c.DType == DTypeBool {
			return apperrors.Validation(cloc, "business key column cannot be bool", "use int or text for business key columns")
		}
		if fkCols[name] {
			return apperrors.Validation(cloc, "business key column is a foreign key column", "use a non-foreign-key column for the business key")
		}
	}

	if err := checkColumnsExist(t, "business_key_static_columns", t.BusinessKeyStaticColumns); err != nil {
		return err
	}
	if err := checkColumnsExist(t, "business_key_changing_columns", t.BusinessKeyChangingColumns); err != nil {
		return err
	}
	if err := checkColumnsExist(t, "scd_tracked_columns", t.SCDTrackedColumns); err != nil {
		return err
	}
	if (len(t.BusinessKeyStaticColumns) > 0 || len(t.BusinessKeyChangingColumns) > 0) && len(t.BusinessKey) == 0 {
		return apperrors.Validation(loc, "static/changing columns require a business key", "set business_key")
	}
	if overlap := intersect(t.BusinessKeyStaticColumns, t.BusinessKeyChangingColumns); len(overlap) > 0 {
		return apperrors.Validationf(loc, "a column is either static or changing",
			"columns %v are both static and changing", overlap)
	}

	if t.BusinessKeyUniqueCount != nil {
		n := *t.BusinessKeyUniqueCount
		if len(t.BusinessKey) == 0 {
			return apperrors.Validation(loc, "business_key_unique_count requires a business key", "set business_key or remove the count")
		}
		if n < 1 {
			return apperrors.Validationf(loc, "use a count of at least 1", "business_key_unique_count %d is not positive", n)
		}
		if t.RowCount > 0 && n > t.RowCount {
			return apperrors.Validationf(loc, "lower the count or raise row_count",
				"business_key_unique_count %d exceeds row_count %d", n, t.RowCount)
		}
		for _, name := range t.BusinessKey {
			if c, _ := t.Column(name); c.Unique && (t.RowCount == 0 || n != t.RowCount) {
				return apperrors.Validationf(columnLoc(t.Name, name), "drop unique or make the count equal to row_count",
					"unique column repeats under business_key_unique_count %d", n)
			}
		}
		if t.SCDMode == SCDMode1 && t.RowCount > 0 && n != t.RowCount {
			return apperrors.Validationf(loc, "scd1 keeps one row per key; set the count equal to row_count",
				"business_key_unique_count %d does not match row_count %d", n, t.RowCount)
		}
	}

	if overlap := intersect(t.BusinessKeyStaticColumns, keys(fkCols)); len(overlap) > 0 {
		return apperrors.Validationf(loc, "foreign key columns keep their assigned parent; drop them from the static list",
			"static columns %v are foreign key columns", overlap)
	}

	return validateSCD(t, fkCols)
}

func validateSCD(t *Table, fkCols map[string]bool) error {
	loc := tableLoc(t.Name)
	hasFields := len(t.SCDTrackedColumns) > 0 || t.SCDActiveFromColumn != "" || t.SCDActiveToColumn != ""

	switch t.SCDMode {
	case SCDModeNone:
		if hasFields {
			return apperrors.Validation(loc, "SCD fields set without scd_mode", "set scd_mode to 'scd1' or 'scd2' or remove the SCD fields")
		}
		return nil
	case SCDMode1, SCDMode2:
	default:
		return apperrors.Validationf(loc, "use 'scd1' or 'scd2'", "unsupported scd_mode '%s'", t.SCDMode)
	}

	if len(t.BusinessKey) == 0 {
		return apperrors.Validation(loc, "scd_mode requires a business key", "set business_key")
	}
	tracked := t.VersionColumns()
	if len(tracked) == 0 {
		return apperrors.Validation(loc, "scd_mode requires tracked columns", "set scd_tracked_columns or business_key_changing_columns")
	}
	if len(t.SCDTrackedColumns) > 0 && len(t.BusinessKeyChangingColumns) > 0 &&
		!sameSet(t.SCDTrackedColumns, t.BusinessKeyChangingColumns) {
		return apperrors.Validation(loc, "scd_tracked_columns and business_key_changing_columns differ", "list the same columns in both or drop one of them")
	}
	if overlap := intersect(tracked, t.BusinessKey); len(overlap) > 0 {
		return apperrors.Validationf(loc, "remove business key columns from the tracked list",
			"tracked columns %v are part of the business key", overlap)
	}
	if overlap := intersect(tracked, t.BusinessKeyStaticColumns); len(overlap) > 0 {
		return apperrors.Validationf(loc, "a static column cannot be tracked", "tracked columns %v are static", overlap)
	}
	if overlap := intersect(tracked, keys(fkCols)); len(overlap) > 0 {
		return apperrors.Validationf(loc, "foreign key columns cannot change between versions; track another column",
			"tracked columns %v are foreign key columns", overlap)
	}
	if t.SCDMode == SCDMode2 {
		for i := range t.Columns {
			if c := &t.Columns[i]; c.Unique && !c.PrimaryKey {
				return apperrors.Validation(columnLoc(t.Name, c.Name), "unique column repeats across scd2 versions", "drop unique from the column")
			}
		}
	}
	if pk, ok := t.PrimaryKey(); ok && contains(tracked, pk.Name) {
		return apperrors.Validation(loc, "primary key cannot be tracked", "remove the primary key from the tracked list")
	}

	from, to := t.SCDActiveFromColumn, t.SCDActiveToColumn
	if t.SCDMode == SCDMode1 {
		if (from == "") != (to == "") {
			return apperrors.Validation(loc, "scd1 period columns must be configured together", "set both scd_active_from_column and scd_active_to_column or neither")
		}
		if from == "" {
			return nil
		}
	}
	if from == "" || to == "" {
		return apperrors.Validation(loc, "scd2 requires scd_active_from_column and scd_active_to_column", "name the two period columns")
	}
	if from == to {
		return apperrors.Validation(loc, "period columns must differ", "use separate from/to columns")
	}
	fc, ok := t.Column(from)
	if !ok {
		return apperrors.Validationf(loc, "add the column or fix the name", "scd_active_from_column '%s' not found", from)
	}
	tc, ok := t.Column(to)
	if !ok {
		return apperrors.Validationf(loc, "add the column or fix the name", "scd_active_to_column '%s' not found", to)
	}
	if !fc.IsTemporal() || !tc.IsTemporal() {
		return apperrors.Validation(loc, "period columns must be date or datetime", "change the period column dtypes")
	}
	if fc.DType != tc.DType {
		return apperrors.Validation(loc, "period columns must share the same dtype", "use date for both or datetime for both")
	}
	if contains(tracked, from) || contains(tracked, to) {
		return apperrors.Validation(loc, "period columns cannot be tracked", "remove the period columns from the tracked list")
	}
	return nil
}

func keys(set map[string]bool) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func checkColumnsExist(t *Table, field string, cols []string) error {
	for _, name := range cols {
		if _, ok := t.Column(name); !ok {
			return apperrors.Validationf(tableLoc(t.Name), fmt.Sprintf("list existing columns in %s", field),
				"%s column '%s' not found", field, name)
		}
	}
	return nil
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func intersect(a, b []string) []string {
	var out []string
	for _, v := range a {
		if contains(b, v) {
			out = append(out, v)
		}
	}
	return out
}

func sameSet(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for _, v := range a {
		if !contains(b, v) {
			return false
		}
	}
	return true
}
