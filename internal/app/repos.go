package app

import (
	"gorm.io/gorm"

	repomirror "github.com/yungbote/sheetmirror-backend/internal/data/repos/mirror"
	"github.com/yungbote/sheetmirror-backend/internal/platform/logger"
)

type Repos struct {
	SheetDefinition repomirror.SheetDefinitionRepo
}

func wireRepos(db *gorm.DB, log *logger.Logger) Repos {
	log.Info("Wiring repos...")
	return Repos{
		SheetDefinition: repomirror.NewSheetDefinitionRepo(db, log),
	}
}
