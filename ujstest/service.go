package ujstest

import (
	"reflect"
	"strings"
	"unicode"

	"github.com/juju/errors"
)

var handlerType = reflect.TypeOf(Handler(nil))

// Register scripts every exported method of rcvr whose signature matches
// Handler, i.e.
//
//	func (r *T) GetJobStatus(ctx context.Context, call *ujstest.Call) ([]any, error)
//
// The method is served under its snake_case name, here "get_job_status".
// It returns the names registered.
func (s *Server) Register(rcvr any) ([]string, error) {
	typ := reflect.TypeOf(rcvr)
	if typ == nil || typ.Kind() != reflect.Ptr {
		return nil, errors.NotValidf("receiver %T: must be a pointer", rcvr)
	}
	val := reflect.ValueOf(rcvr)

	var names []string
	for i := 0; i < typ.NumMethod(); i++ {
		method := typ.Method(i)
		fn := val.Method(i)
		if !fn.Type().ConvertibleTo(handlerType) {
			continue
		}
		h := fn.Convert(handlerType).Interface().(Handler)
		name := snakeCase(method.Name)
		s.Handle(name, h)
		names = append(names, name)
	}
	if len(names) == 0 {
		return nil, errors.NotFoundf("handler methods on %s", typ.Elem().Name())
	}
	return names, nil
}

// snakeCase turns GetJobInfo2 into get_job_info2.
func snakeCase(name string) string {
	var b strings.Builder
	for i, r := range name {
		if unicode.IsUpper(r) {
			if i > 0 {
				b.WriteByte('_')
			}
			r = unicode.ToLower(r)
		}
		b.WriteRune(r)
	}
	return b.String()
}
