package repo

import (
	"contentfabric/internal/domain"
	"contentfabric/internal/infra"
)

// NewStore wires every PostgreSQL repository over one executor.
func NewStore(sql infra.SQLExecutor) domain.Store {
	return domain.Store{
		Parameters:  NewParameterRepository(sql),
		Templates:   NewTemplateRepository(sql),
		Prompts:     NewPromptRepository(sql),
		Generations: NewGenerationRepository(sql),
		Results:     NewResultRepository(sql),
	}
}

var (
	_ domain.ParameterRepository  = (*ParameterRepositoryPG)(nil)
	_ domain.TemplateRepository   = (*TemplateRepositoryPG)(nil)
	_ domain.PromptRepository     = (*PromptRepositoryPG)(nil)
	_ domain.GenerationRepository = (*GenerationRepositoryPG)(nil)
	_ domain.ResultRepository     = (*ResultRepositoryPG)(nil)
)
