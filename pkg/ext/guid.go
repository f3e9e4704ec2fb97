package ext

import (
	"reflect"

	"github.com/google/uuid"

	"github.com/deniszykov/csharp-eval-unity3d-sub003/pkg/typemodel"
)

// Guid exposes uuid.UUID as the Guid type: random version 4 values,
// parsing and the all-zero Empty value. Instances compare with == and
// format with ToString.
func Guid() Library {
	t := reflect.TypeFor[uuid.UUID]()
	return Library{Name: "Guid", Type: t, register: func(r *typemodel.Registry) error {
		r.RegisterStaticValue(t, "Empty", uuid.Nil)
		return registerStatics(r, t, []static{
			{"NewGuid", uuid.NewRandom, nil},
			{"Parse", uuid.Parse, []string{"input"}},
		})
	}}
}
