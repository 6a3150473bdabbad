package hook

import (
	"github.com/zboralski/dexhook/internal/jvm"
)

// advisory warns about a class that should not be hooked. Hooking it is
// still allowed.
type advisory struct {
	Name     string
	Patterns []string
	Message  string
}

var advisories = []advisory{
	{
		Name:     "object",
		Patterns: []string{jvm.ObjectName},
		Message: "Hook [Object] Class is a dangerous behavior! " +
			"This is the parent Class of all objects, if you hook it, it may cause a lot of memory leaks",
	},
	{
		Name:     "classloader",
		Patterns: []string{jvm.ClassLoaderName},
		Message: "Hook [ClassLoader] Class is a dangerous behavior! " +
			"If you only want to listen to \"loadClass\" use \"ClassLoader.fetching\" instead it",
	},
	{
		Name: "reflection",
		Patterns: []string{
			jvm.ClassName, jvm.MethodName, jvm.FieldName,
			jvm.ConstructorName, jvm.MemberName,
		},
		Message: "Hook [Class/Method/Field/Constructor/Member] Class is a dangerous behavior! " +
			"Those Class should not be hooked, it may cause StackOverflow errors",
	},
}

// adviceFor returns the warning for class name, if any.
func adviceFor(name string) (advisory, bool) {
	for _, a := range advisories {
		for _, p := range a.Patterns {
			if p == name {
				return a, true
			}
		}
	}
	return advisory{}, false
}

// advise logs the warning for class once per install pass.
func (r *Registry) advise(class *jvm.Class) {
	a, ok := adviceFor(class.Name())
	if !ok {
		return
	}
	r.log().Advisory(class.Name(), a.Message)
	r.emit(EventAdvisory, class.Name(), a.Name)
}
