package pipeline

import (
	"fmt"
)

// Parse lexes a command line and builds a Plan. It splits on | to get
// stages and pulls out redirects: < applies to the first stage, > and >>
// to the last. A trailing & marks the plan as background.
//
// A stage with no words inside a multi-stage pipeline is not a parse
// error; the executor reports it against that stage and keeps going.
func Parse(line string) (*Plan, error) {
	toks, err := Lex(line)
	if err != nil {
		return nil, err
	}
	if len(toks) == 0 {
		return nil, fmt.Errorf("%w: %v", ErrSyntax, ErrEmptyStage)
	}

	p := &Plan{}
	var (
		stages  [][]string
		current []string
		inAt    = -1 // stage index the < appeared in
		outAt   = -1 // stage index the > or >> appeared in
		outOp   string
	)

	for i := 0; i < len(toks); i++ {
		t := toks[i]
		switch t.Kind {
		case TokWord:
			current = append(current, t.Text)

		case TokPipe:
			stages = append(stages, current)
			current = nil

		case TokRedirectIn, TokRedirectOut, TokAppendOut:
			if i+1 >= len(toks) || toks[i+1].Kind != TokWord {
				return nil, fmt.Errorf("%w: missing file name after %q", ErrSyntax, t.Text)
			}
			i++
			target := toks[i].Text
			if t.Kind == TokRedirectIn {
				if p.RedirectIn != "" {
					return nil, fmt.Errorf("%w: multiple %q redirects", ErrSyntax, OpRedirectIn)
				}
				p.RedirectIn = target
				inAt = len(stages)
				continue
			}
			if p.RedirectOut != "" {
				return nil, fmt.Errorf("%w: multiple output redirects", ErrSyntax)
			}
			p.RedirectOut = target
			p.Mode = Truncate
			if t.Kind == TokAppendOut {
				p.Mode = Append
			}
			outAt = len(stages)
			outOp = t.Text

		case TokBackground:
			if i != len(toks)-1 {
				return nil, fmt.Errorf("%w: %q is only allowed at the end of a command", ErrSyntax, OpBackground)
			}
			p.Background = true
		}
	}
	stages = append(stages, current)

	if inAt >= 0 {
		if inAt != 0 {
			return nil, fmt.Errorf("%w: %q is only allowed on the first command of a pipeline", ErrSyntax, OpRedirectIn)
		}
		if len(stages[0]) == 0 {
			return nil, fmt.Errorf("%w: missing command before %q", ErrSyntax, OpRedirectIn)
		}
	}
	if outAt >= 0 {
		if outAt != len(stages)-1 {
			return nil, fmt.Errorf("%w: %q is only allowed on the last command of a pipeline", ErrSyntax, outOp)
		}
		if len(stages[outAt]) == 0 {
			return nil, fmt.Errorf("%w: missing command before %q", ErrSyntax, outOp)
		}
	}
	if len(stages) == 1 && len(stages[0]) == 0 {
		return nil, fmt.Errorf("%w: %v", ErrSyntax, ErrEmptyStage)
	}

	p.Stages = stages
	return p, nil
}
