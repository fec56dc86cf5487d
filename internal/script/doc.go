// Package script reads taskt script documents and binds them to the
// command catalog.
//
// A document is YAML (or JSON) with a name, seeded variables and an
// ordered command list:
//
//	name: greet
//	variables:
//	  - name: who
//	    value: World
//	commands:
//	  - command: set_variable
//	    properties:
//	      name: greeting
//	      value: "Hello, {who}!"
//
// Properties may be stored in storage form (sentinel code points for the
// variable markers and engine keywords). Loader converts them to display
// form per property domain and wraps each entry in a Step, which
// implements automation.Command.
package script
