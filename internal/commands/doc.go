// Package commands provides the built-in command catalog.
//
// Each command is a script.Descriptor: a kind, its property specs, an
// optional validator and a run function. Register adds them to a catalog
// grouped as follows:
//
//	misc, variable   comment, set_variable, get_length
//	engine           delay, throw_error, stop_script
//	stopwatch        stopwatch_create, stopwatch_action, stopwatch_measure, stopwatch_close
//	process          run_process, start_process, stop_process
//	json             json_get_value, json_set_value, json_insert_array_item
//	database         database_connect, database_query, database_execute, database_close
//
// Stopwatches, background processes and database connections are named
// instances held in the run's registry, so whatever a script forgets to
// close is released when the run ends.
package commands
