// Package cli implements the fieldsync command line.
//
// Every subcommand hands its raw arguments to config.LoadConfig, so all
// settings flags (-a, -d, -f, ...) and the -c JSON file work the same for
// each of them:
//
//	fieldsync sync -a https://api.example.org/v1.7 -d sqlite://fs.db
//	fieldsync labels -f data/field-config.json
//	fieldsync token set
package cli
