package docstore

import (
	"database/sql/driver"
	"fmt"
	"strconv"

	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/schema"
)

// LeafJSON is the encoded JSON of one leaf. On sqlite the column is TEXT:
// a JSON column there has NUMERIC affinity and hands numbers back as int64 or
// float64, which Scan still accepts for tables created that way.
type LeafJSON []byte

func (j LeafJSON) Value() (driver.Value, error) {
	return datatypes.JSON(j).Value()
}

func (j *LeafJSON) Scan(value any) error {
	switch v := value.(type) {
	case int64:
		*j = LeafJSON(strconv.FormatInt(v, 10))
	case float64:
		*j = LeafJSON(strconv.FormatFloat(v, 'g', -1, 64))
	case bool:
		*j = LeafJSON(strconv.FormatBool(v))
	case nil:
		*j = LeafJSON("null")
	case []byte, string:
		var raw datatypes.JSON
		if err := raw.Scan(v); err != nil {
			return err
		}
		*j = LeafJSON(raw)
	default:
		return fmt.Errorf("docstore: unsupported leaf value of type %T", value)
	}
	return nil
}

func (LeafJSON) GormDataType() string {
	return datatypes.JSON{}.GormDataType()
}

func (LeafJSON) GormDBDataType(db *gorm.DB, field *schema.Field) string {
	if db.Dialector.Name() == "sqlite" {
		return "TEXT"
	}
	return datatypes.JSON{}.GormDBDataType(db, field)
}
