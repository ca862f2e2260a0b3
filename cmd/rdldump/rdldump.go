/*
rdldump is a console utility parsing record description files and dumping the
resulting record database as text or JSON. Usage is

	rdldump [-j] [-o <name>] [-I <dir>]... <file>

-j flag instructs rdldump to output JSON instead of text;

-o <name> defines output file name, default is standard output;

-I <dir> adds a directory to search for included files, may be repeated;

<file> defines a record description file parsable by parser.Parse().
*/
package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"github.com/ava12/rdl/parser"
	"github.com/ava12/rdl/record"
	"github.com/ava12/rdl/source"
)

var (
	generateJson            bool
	inFileName, outFileName string
	includeDirs             dirList
)

type dirList []string

func (d *dirList) String() string {
	return fmt.Sprint([]string(*d))
}

func (d *dirList) Set(value string) error {
	*d = append(*d, value)
	return nil
}

func main() {
	flag.Usage = func() {
		fmt.Fprintln(flag.CommandLine.Output(), "Usage is  rdldump [-j] [-o <name>] [-I <dir>]... <file>")
		flag.PrintDefaults()
		fmt.Fprintln(flag.CommandLine.Output(), "  <file>")
		fmt.Fprintln(flag.CommandLine.Output(), "\trecord description file name")
	}

	flag.BoolVar(&generateJson, "j", false, "output JSON instead of text")
	flag.StringVar(&outFileName, "o", "", "output file name, default is stdout")
	flag.Var(&includeDirs, "I", "include directory, may be repeated")
	flag.Parse()
	inFileName = flag.Arg(0)
	if inFileName == "" {
		flag.Usage()
		os.Exit(2)
	}

	db := record.NewDatabase()
	p := parser.New(db)
	for _, dir := range includeDirs {
		p.AddIncludeDir(dir)
	}

	src, e := os.ReadFile(inFileName)
	if e == nil {
		e = p.Parse(source.New(inFileName, src))
		if e != nil && p.Diagnostics() > 1 {
			fmt.Fprintf(os.Stderr, "%d errors, the first one is:\n", p.Diagnostics())
		}
	}
	var content []byte
	if e == nil {
		if generateJson {
			content, e = makeJson(db)
		} else {
			content = makeText(db)
		}
	}
	if e == nil {
		if outFileName == "" {
			_, e = os.Stdout.Write(content)
		} else {
			e = os.WriteFile(outFileName, content, 0o666)
		}
	}

	if e != nil {
		fmt.Println(e.Error())
		os.Exit(3)
	}
}

func makeText(db *record.Database) []byte {
	var buffer bytes.Buffer
	pool := db.Pool()
	for _, rec := range db.All() {
		buffer.WriteString(rec.String(pool))
		buffer.WriteByte('\n')
	}
	return buffer.Bytes()
}

type jsonField struct {
	Type   string `json:"type"`
	Value  string `json:"value"`
	Tagged bool   `json:"tagged,omitempty"`
}

type jsonRecord struct {
	Name      string               `json:"name"`
	Anonymous bool                 `json:"anonymous,omitempty"`
	Bases     []string             `json:"bases,omitempty"`
	Fields    map[string]jsonField `json:"fields"`
}

func makeJson(db *record.Database) ([]byte, error) {
	pool := db.Pool()
	out := make([]jsonRecord, 0, db.Len())
	for _, rec := range db.All() {
		jr := jsonRecord{
			Name:      rec.Name,
			Anonymous: rec.Anonymous,
			Fields:    make(map[string]jsonField, len(rec.Fields)),
		}
		for _, base := range rec.Bases {
			jr.Bases = append(jr.Bases, base.Name)
		}
		for _, f := range rec.Fields {
			jr.Fields[f.Name] = jsonField{f.Type.String(), pool.String(f.Value), f.Tagged}
		}
		out = append(out, jr)
	}
	return json.MarshalIndent(out, "", "  ")
}
