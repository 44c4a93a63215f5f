// Package enrich describes the enriched fact relation: facts left-joined to
// winner/loser naming rules and the geography crosswalk, with partition keys
// derived from substituted fields.
package enrich

import (
	"dmastore/internal/dimension"
	"dmastore/internal/query"
	"dmastore/pkg/models"
)

// Output columns of the enriched relation
const (
	ColTheDate   = "the_date"
	ColDS        = "ds"
	ColMoverInd  = "mover_ind"
	ColWinner    = "winner"
	ColLoser     = "loser"
	ColDMA       = "dma"
	ColDMAName   = "dma_name"
	ColState     = "state"
	ColYear      = "year"
	ColMonth     = "month"
	ColDay       = "day"
	ColPMoverInd = "p_mover_ind"
)

const (
	relFacts      = "f"
	relWinner     = "w"
	relLoser      = "l"
	relGeo        = "g"
	cteBase       = "base"
	cteKeyed      = "keyed"
	joinKeyColumn = "join_key"
)

// PartitionKeyColumns must be non-null for a row to be persisted
var PartitionKeyColumns = []string{ColDS, ColPMoverInd, ColYear, ColMonth, ColDay, ColTheDate}

// Plan returns the enriched relation with rows lacking any partition key removed
func Plan(in dimension.Inputs, schema models.Schema) query.Select {
	s := Unfiltered(in, schema)
	for _, col := range PartitionKeyColumns {
		s.Where = append(s.Where, query.IsNotNull{X: query.Col(col)})
	}
	return s
}

// Unfiltered returns the enriched relation before the partition-key filter.
// Its row count equals the fact row count when dimension keys are unique.
func Unfiltered(in dimension.Inputs, schema models.Schema) query.Select {
	schema = schema.WithDefaults()
	fc := schema.Facts

	base := query.Select{
		Prefix: []query.Expr{query.AllExcept{
			Table:   relFacts,
			Exclude: []string{fc.Date, fc.DS, fc.MoverInd},
		}},
		Columns: []query.Column{
			query.As(TheDate.Expr(query.QCol(relFacts, fc.Date)), ColTheDate),
			query.As(DS.Expr(query.QCol(relFacts, fc.DS)), ColDS),
			query.As(MoverInd.Expr(query.QCol(relFacts, fc.MoverInd)), ColMoverInd),
			query.As(query.QCol(relWinner, ColWinner), ColWinner),
			query.As(query.QCol(relLoser, ColLoser), ColLoser),
			query.As(query.QCol(relGeo, ColDMA), ColDMA),
			query.As(query.QCol(relGeo, ColDMAName), ColDMAName),
			query.As(query.QCol(relGeo, ColState), ColState),
		},
		From:      query.ReadParquet(in.Facts.Pattern, false),
		FromAlias: relFacts,
		Joins: []query.Join{
			query.LeftJoin(
				query.Subquery{Select: ruleProjection(in.Rules, schema.Rules, ColWinner)},
				relWinner,
				query.Eq(asKey(query.QCol(relFacts, fc.WinnerGroup)), query.QCol(relWinner, joinKeyColumn)),
			),
			query.LeftJoin(
				query.Subquery{Select: ruleProjection(in.Rules, schema.Rules, ColLoser)},
				relLoser,
				query.Eq(asKey(query.QCol(relFacts, fc.LoserGroup)), query.QCol(relLoser, joinKeyColumn)),
			),
			query.LeftJoin(
				query.Subquery{Select: geoProjection(in.Geo, schema.Geo)},
				relGeo,
				query.Eq(asKey(query.QCol(relFacts, fc.CensusBlock)), query.QCol(relGeo, joinKeyColumn)),
			),
		},
	}

	theDate := query.Col(ColTheDate)
	keyed := query.Select{
		Prefix: []query.Expr{query.AllExcept{}},
		Columns: []query.Column{
			query.As(query.Call("strftime", theDate, query.String("%Y")), ColYear),
			query.As(query.Call("strftime", theDate, query.String("%m")), ColMonth),
			query.As(query.Call("strftime", theDate, query.String("%d")), ColDay),
			query.As(MoverLabelExpr(query.Col(ColMoverInd)), ColPMoverInd),
		},
		From: query.Table(cteBase),
	}

	return query.Select{
		With: []query.CTE{
			{Name: cteBase, Select: base},
			{Name: cteKeyed, Select: keyed},
		},
		From: query.Table(cteKeyed),
	}
}

// ruleProjection maps sp-group ids to reporting names under alias
func ruleProjection(rules dimension.Location, rc models.RuleColumns, alias string) query.Select {
	return query.Select{
		Distinct: true,
		Columns: []query.Column{
			query.As(asKey(query.Col(rc.Group)), joinKeyColumn),
			query.As(query.Col(rc.Name), alias),
		},
		From: query.ReadFiles(rules.Pattern, rules.Ext, rc.Group),
	}
}

func geoProjection(geo dimension.Location, gc models.GeoColumns) query.Select {
	return query.Select{
		Distinct: true,
		Columns: []query.Column{
			query.As(asKey(query.Col(gc.CensusBlock)), joinKeyColumn),
			query.As(query.Col(gc.DMA), ColDMA),
			query.As(query.Col(gc.DMAName), ColDMAName),
			query.As(query.Col(gc.State), ColState),
		},
		From: query.ReadFiles(geo.Pattern, geo.Ext, gc.CensusBlock),
	}
}

// asKey normalizes join keys so integer and string ids compare equal
func asKey(e query.Expr) query.Expr {
	return query.Cast{X: e, Type: "VARCHAR"}
}
