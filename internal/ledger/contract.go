package ledger

// ABI definitions for the two on-ledger contracts: a factory that creates one
// election contract per deployment, and the per-election contract itself.
// Bindings are built at runtime with bind.NewBoundContract rather than
// generated code.

const ElectionFactoryABI = `[
  {"type":"function","name":"owner","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"address"}]},
  {"type":"function","name":"authorizedDeployers","stateMutability":"view","inputs":[{"name":"","type":"address"}],"outputs":[{"name":"","type":"bool"}]},
  {"type":"function","name":"authorizeDeployer","stateMutability":"nonpayable","inputs":[{"name":"deployer","type":"address"}],"outputs":[]},
  {"type":"function","name":"createElection","stateMutability":"nonpayable","inputs":[
    {"name":"title","type":"string"},
    {"name":"startTime","type":"uint64"},
    {"name":"endTime","type":"uint64"},
    {"name":"maxVoters","type":"uint64"},
    {"name":"realTimeResults","type":"bool"}
  ],"outputs":[{"name":"","type":"address"}]}
]`

const ElectionContractABI = `[
  {"type":"function","name":"startElection","stateMutability":"nonpayable","inputs":[],"outputs":[]},
  {"type":"function","name":"isElectionActive","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"bool"}]},
  {"type":"function","name":"batchRegisterVoters","stateMutability":"nonpayable","inputs":[
    {"name":"voterIds","type":"string[]"},
    {"name":"emails","type":"string[]"}
  ],"outputs":[]},
  {"type":"function","name":"isVoterRegistered","stateMutability":"view","inputs":[{"name":"voterId","type":"string"}],"outputs":[{"name":"","type":"bool"}]},
  {"type":"function","name":"hasVoterVoted","stateMutability":"view","inputs":[{"name":"voterId","type":"string"}],"outputs":[{"name":"","type":"bool"}]},
  {"type":"function","name":"castVote","stateMutability":"nonpayable","inputs":[
    {"name":"voteHash","type":"bytes32"},
    {"name":"voterId","type":"string"}
  ],"outputs":[]}
]`
