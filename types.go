package tobsql

import (
	"github.com/tobsdb/tobsql/internal/builder"
	"github.com/tobsdb/tobsql/internal/props"
	"github.com/tobsdb/tobsql/internal/query"
	"github.com/tobsdb/tobsql/internal/types"
)

type (
	Model       = builder.Model
	Column      = builder.Column
	Row         = builder.Row
	ChangeType  = builder.ChangeType
	ChangeEvent = builder.ChangeEvent
	Adapter     = builder.Adapter
	Dispatcher  = builder.Dispatcher

	DispatcherFunc = builder.DispatcherFunc

	Modifier      = query.Modifier
	Result        = query.Result
	Change        = query.Change
	SortKey       = query.SortKey
	JoinType      = query.JoinType
	Call          = query.Call
	Position      = query.Position
	AggregateFunc = query.AggregateFunc
	QueryError    = query.QueryError
	SchemaError   = builder.SchemaError
)

const (
	Inserted = builder.ChangeInserted
	Deleted  = builder.ChangeDeleted
	Modified = builder.ChangeModified

	LeftJoin  = query.JoinLeft
	RightJoin = query.JoinRight
	InnerJoin = query.JoinInner
	OuterJoin = query.JoinOuter
	CrossJoin = query.JoinCross
)

var (
	ErrSchema        = builder.ErrSchema
	ErrQueryArgument = query.ErrQueryArgument
)

// Query modifiers. Each Execute call takes exactly one of Upsert, Select,
// Delete or Drop, plus any of the others.
var (
	Upsert  = query.Upsert
	Select  = query.Select
	Delete  = query.Delete
	Drop    = query.Drop
	Where   = query.Where
	Having  = query.Having
	Join    = query.Join
	GroupBy = query.GroupBy
	OrderBy = query.OrderBy
	Offset  = query.Offset
	Limit   = query.Limit
	Asc     = query.Asc
	Desc    = query.Desc
)

// NewColumn describes one column of a table model.
func NewColumn(key string, t types.ColumnType, p props.Props) *Column {
	return builder.NewColumn(key, t, p)
}

// ModelsFromMap orders a table -> columns map by table name.
func ModelsFromMap(m map[string][]*Column) []Model { return builder.ModelsFromMap(m) }

// ParseSchema reads the schema language into models.
func ParseSchema(schema string) ([]Model, error) { return builder.ParseSchema(schema) }

type (
	ColumnType = types.ColumnType
	Props      = props.Props
)

// Column types.
var (
	TypeAny    = types.Any
	TypeString = types.String
	TypeInt    = types.Int
	TypeFloat  = types.Float
	TypeNumber = types.Number
	TypeBool   = types.Bool
	TypeMap    = types.Map
	TypeUuid   = types.Uuid

	ArrayOf = types.ArrayOf
)

// Column properties.
const (
	PropKey           = props.FieldPropKey
	PropAutoIncrement = props.FieldPropAutoIncrement
	PropIndex         = props.FieldPropIndex

	KeyPrimary = props.KeyPropPrimary
)
