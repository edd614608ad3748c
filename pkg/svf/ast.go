package svf

import (
	"github.com/alecthomas/participle/v2/lexer"
)

// File is a parsed SVF script.
type File struct {
	Stmts []*Stmt `@@*`
}

// Stmt is one semicolon-terminated statement.
type Stmt struct {
	Pos lexer.Position

	End       *EndState  `(  @@`
	State     *StateStmt ` | @@`
	Scan      *Scan      ` | @@`
	RunTest   *RunTest   ` | @@`
	TRST      *TRST      ` | @@`
	Frequency *Frequency ` | @@ ) ";"`
}

// EndState is ENDIR or ENDDR.
type EndState struct {
	Kind  string `@( "ENDIR" | "ENDDR" )`
	State string `@Ident`
}

// StateStmt walks the controller through the listed states.
type StateStmt struct {
	Path []string `"STATE" @Ident+`
}

// Scan is SIR, SDR or one of the header and trailer statements.
type Scan struct {
	Kind   string   `@( "SIR" | "SDR" | "HIR" | "HDR" | "TIR" | "TDR" )`
	Length int      `@Number`
	Params []*Param `@@*`
}

// Param is a TDI, TDO, MASK or SMASK value.
type Param struct {
	Name  string `@( "TDI" | "TDO" | "MASK" | "SMASK" )`
	Value string `@Hex`
}

// RunTest idles the controller for a number of clocks or seconds.
type RunTest struct {
	RunState string   `"RUNTEST" @Ident?`
	Count    float64  `@Number`
	Unit     string   `@( "TCK" | "SCK" | "SEC" )`
	MinTime  *float64 `( @Number "SEC" )?`
	MaxTime  *float64 `( "MAXIMUM" @Number "SEC" )?`
	EndState string   `( "ENDSTATE" @Ident )?`
}

// TRST drives the optional test reset line.
type TRST struct {
	Mode string `"TRST" @Ident`
}

// Frequency sets the TCK rate; no value means full speed.
type Frequency struct {
	Hz *float64 `"FREQUENCY" ( @Number "HZ" )?`
}
