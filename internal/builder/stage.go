package builder

import (
	"context"
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"strings"

	"github.com/vk/callgrid/internal/config"
	"github.com/vk/callgrid/internal/node"
	"github.com/vk/callgrid/internal/nodeid"
	"github.com/vk/callgrid/internal/output"
	"github.com/vk/callgrid/internal/scatter"
	"github.com/vk/callgrid/internal/workunit"
	"github.com/zclconf/go-cty/cty"
)

// input is one upstream output path and the node producing it.
type input struct {
	path string
	node *node.Node
}

// stageBuild holds what every node of one stage shares.
type stageBuild struct {
	*run
	st       *config.Stage
	addr     nodeid.Address
	deps     []*node.Node
	inputs   []input
	upstream map[string][]string
	params   map[string]string
	vars     map[string]cty.Value
	final    string
}

// unit describes one command-running node of a stage.
type unit struct {
	addr      nodeid.Address
	role      node.Role
	shard     scatter.ShardSpec
	upstream  []*node.Node
	inputs    []string
	intervals string
	out       output.Output
}

func (r *run) stage(st *config.Stage) (*node.Node, error) {
	s := &stageBuild{run: r, st: st, addr: nodeid.New(config.KindStage, st.Name), upstream: make(map[string][]string)}

	for _, ref := range st.DependsOn {
		ns, err := r.expand(ref)
		if err != nil {
			return nil, err
		}
		_, name, _ := config.ParseRef(ref)
		if _, dup := s.upstream[name]; dup {
			return nil, fmt.Errorf("two dependencies are named %q", name)
		}
		paths := []string{}
		for _, n := range ns {
			s.deps = append(s.deps, n)
			for _, p := range n.Output().Paths() {
				s.inputs = append(s.inputs, input{path: p, node: n})
				paths = append(paths, p)
			}
		}
		s.upstream[name] = paths
	}

	params, err := evalParams(st.Params, r.base)
	if err != nil {
		return nil, err
	}
	s.params = params
	s.vars = with(r.base, map[string]cty.Value{"params": paramsVal(params)})

	rel, err := evalString(st.Output, s.vars)
	if err != nil {
		return nil, fmt.Errorf("output: %w", err)
	}
	root := r.req.BaseDir
	if st.Scratch && r.req.ScratchDir != "" {
		root = r.req.ScratchDir
	}
	if s.final, err = r.prov.Path(root, r.req.Prefix, rel); err != nil {
		return nil, err
	}

	if st.Scatter == nil {
		return s.single()
	}
	switch st.Scatter.Policy {
	case config.PolicyItems:
		return s.splitItems()
	case config.PolicyRegions:
		return s.regions()
	case config.PolicyVCF:
		return s.vcf()
	}
	return nil, fmt.Errorf("unknown scatter policy %q", st.Scatter.Policy)
}

func (s *stageBuild) single() (*node.Node, error) {
	var out output.Output
	switch {
	case s.st.Paired:
		out = output.NewPaired(output.PairedPaths(s.final))
	case s.st.Committed:
		out = output.NewCommitted(s.final)
	default:
		out = output.NewSingle(s.final)
	}
	return s.commandNode(unit{
		addr:     s.addr,
		role:     node.RoleStage,
		upstream: s.deps,
		inputs:   s.inputPaths(),
		out:      out,
	})
}

func (s *stageBuild) inputPaths() []string {
	paths := make([]string, len(s.inputs))
	for i, in := range s.inputs {
		paths[i] = in.path
	}
	return paths
}

func (s *stageBuild) resources() workunit.Resources {
	return workunit.Resources{
		MemoryMB: s.st.Resources.MemoryMB,
		CPUs:     s.st.Resources.CPUs,
		Queue:    s.st.Resources.Queue,
	}
}

// render evaluates the stage command for u with outs bound to the output
// variables.
func (s *stageBuild) render(u unit, outs []string) (string, error) {
	vars := with(s.vars, unitVars{
		inputs:    u.inputs,
		outputs:   outs,
		index:     u.shard.Index,
		count:     max(u.shard.Count, 1),
		intervals: u.intervals,
		upstream:  s.upstream,
		resources: s.resources(),
	}.values())
	cmd, err := evalString(s.st.Command, vars)
	if err != nil {
		return "", fmt.Errorf("command: %w", err)
	}
	return cmd, nil
}

// commandNode builds a node running the stage command. The command is
// rendered once against the final paths so evaluation errors surface at
// build time, and that rendering is part of the node's identity.
func (s *stageBuild) commandNode(u unit) (*node.Node, error) {
	finals := u.out.Paths()
	dry, err := s.render(u, finals)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", u.addr, err)
	}
	values := maps.Clone(s.params)
	values["command"] = dry

	id := u.addr.String()
	return s.add(node.New(node.Spec{
		Address: u.addr,
		Params: node.Params{
			Kind:   config.KindStage,
			Name:   s.st.Name,
			Role:   u.role,
			Prefix: s.req.Prefix,
			Shard:  u.shard,
			Inputs: u.inputs,
			Values: values,
		},
		Provenance: s.prov,
		Upstream:   u.upstream,
		Output:     u.out,
		Work: func(ctx context.Context, token string) (*workunit.WorkUnit, error) {
			temps, err := tempPaths(finals, token)
			if err != nil {
				return nil, err
			}
			cmd, err := s.render(u, temps)
			if err != nil {
				return nil, err
			}
			return &workunit.WorkUnit{
				ID:        id,
				Command:   cmd,
				Resources: s.resources(),
				Inputs:    u.inputs,
				Outputs:   temps,
				LogPath:   s.logPath(u.addr, token),
			}, nil
		},
	}))
}

var logNameReplacer = strings.NewReplacer("[", "_", "]", "")

func (r *run) logPath(addr nodeid.Address, token string) string {
	if r.req.LogDir == "" {
		return ""
	}
	return filepath.Join(r.req.LogDir, r.req.Prefix, logNameReplacer.Replace(addr.String())+"."+token+".log")
}

// tempPaths returns the attempt-private temp path of every final path,
// creating the directories they live in.
func tempPaths(finals []string, token string) ([]string, error) {
	temps := make([]string, len(finals))
	for i, final := range finals {
		if err := os.MkdirAll(filepath.Dir(final), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create output directory: %w", err)
		}
		temps[i] = output.TempPath(final, token)
	}
	return temps, nil
}
