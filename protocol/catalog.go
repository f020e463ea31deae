package protocol

import "sort"

// Method describes one remote operation: its name, the ordered names of its
// positional parameters and how many values its result list holds.
//
// Returns is interpreted by the caller when unwrapping a response:
//   - 0: the result is ignored
//   - 1: result[0] is the value
//   - N: the whole result list is the value
type Method struct {
	Name    string
	Params  []string
	Returns int
}

// Arity is the number of positional parameters the method takes.
func (m Method) Arity() int {
	return len(m.Params)
}

// QualifiedName is the method name as sent on the wire.
func (m Method) QualifiedName() string {
	return QualifiedName(m.Name)
}

// JobScoped reports whether the first parameter identifies a job.
func (m Method) JobScoped() bool {
	return len(m.Params) > 0 && m.Params[0] == "job"
}

var catalog = map[string]Method{}

func def(name string, returns int, params ...string) {
	catalog[name] = Method{Name: name, Params: params, Returns: returns}
}

func init() {
	def("ver", 1)
	def("status", 1)

	// key/value state
	def("set_state", 0, "service", "key", "value")
	def("set_state_auth", 0, "token", "key", "value")
	def("get_state", 1, "service", "key", "auth")
	def("has_state", 1, "service", "key", "auth")
	def("get_has_state", 2, "service", "key", "auth")
	def("remove_state", 0, "service", "key")
	def("remove_state_auth", 0, "token", "key")
	def("list_state", 1, "service", "auth")
	def("list_state_services", 1, "auth")

	// job lifecycle
	def("create_job2", 1, "params")
	def("create_job", 1)
	def("start_job", 0, "job", "token", "status", "desc", "progress", "est_complete")
	def("create_and_start_job", 1, "token", "status", "desc", "progress", "est_complete")
	def("update_job_progress", 0, "job", "token", "status", "prog", "est_complete")
	def("update_job", 0, "job", "token", "status", "est_complete")
	def("get_job_description", 5, "job")
	def("get_job_status", 7, "job")
	def("complete_job", 0, "job", "token", "status", "error", "res")
	def("get_results", 1, "job")
	def("get_detailed_error", 1, "job")
	def("get_job_info2", 1, "job")
	def("get_job_info", 1, "job")
	def("list_jobs2", 1, "params")
	def("list_jobs", 1, "services", "filter")
	def("list_job_services", 1)

	// sharing and deletion
	def("share_job", 0, "job", "users")
	def("unshare_job", 0, "job", "users")
	def("get_job_owner", 1, "job")
	def("get_job_shared", 1, "job")
	def("delete_job", 0, "job")
	def("force_delete_job", 0, "token", "job")
}

// Lookup finds a method by its short or qualified name.
func Lookup(name string) (Method, bool) {
	m, ok := catalog[ShortName(name)]
	return m, ok
}

// Methods returns every method in the catalog ordered by name.
func Methods() []Method {
	methods := make([]Method, 0, len(catalog))
	for _, m := range catalog {
		methods = append(methods, m)
	}
	sort.Slice(methods, func(i, j int) bool {
		return methods[i].Name < methods[j].Name
	})
	return methods
}
