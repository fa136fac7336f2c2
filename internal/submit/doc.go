// Package submit provides workunit.Submitter implementations: Local runs
// commands through a shell on this machine, Slurm wraps them in a batch
// script and blocks on `sbatch --wait`.
package submit
